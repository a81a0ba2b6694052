package contract

type evalReportSchema struct{}

func (evalReportSchema) validate(v map[string]interface{}, path []string) []Diagnostic {
	var diags []Diagnostic

	if _, d := requireString(v, "contractVersion", path); d != nil {
		diags = append(diags, d...)
	}

	targets, d := requireArray(v, "targets", path)
	if d != nil {
		diags = append(diags, d...)
	}
	for i, raw := range targets {
		tpath := appendPath(appendPath(path, "targets"), itoa(i))
		t, ok := raw.(map[string]interface{})
		if !ok {
			diags = append(diags, Diagnostic{Path: tpath, Code: "type_mismatch", Message: "expected object"})
			continue
		}
		if _, d := requireString(t, "id", tpath); d != nil {
			diags = append(diags, d...)
		}
		if _, d := requireNumber(t, "finalScore", tpath); d != nil {
			diags = append(diags, d...)
		}
		if _, d := requireBool(t, "passedHardGates", tpath); d != nil {
			diags = append(diags, d...)
		}
		if _, d := requireArray(t, "hardGateErrors", tpath); d != nil {
			diags = append(diags, d...)
		}
		if _, d := requireArray(t, "hardGateWarnings", tpath); d != nil {
			diags = append(diags, d...)
		}
	}

	health, d := requireObject(v, "adapterHealth", path)
	if d != nil {
		diags = append(diags, d...)
	} else {
		hpath := appendPath(path, "adapterHealth")
		if _, d := requireArray(health, "configured", hpath); d != nil {
			diags = append(diags, d...)
		}
		if _, d := requireArray(health, "active", hpath); d != nil {
			diags = append(diags, d...)
		}
		if _, d := requireArray(health, "failed", hpath); d != nil {
			diags = append(diags, d...)
		}
	}

	return diags
}
