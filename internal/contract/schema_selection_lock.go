package contract

type selectionLockSchema struct{}

func (selectionLockSchema) validate(v map[string]interface{}, path []string) []Diagnostic {
	var diags []Diagnostic

	if _, d := requireString(v, "contractVersion", path); d != nil {
		diags = append(diags, d...)
	}

	targets, d := requireArray(v, "targets", path)
	if d != nil {
		return append(diags, d...)
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
		approved, d := requireBool(t, "approved", tpath)
		diags = append(diags, d...)
		if _, d := requireString(t, "inputHash", tpath); d != nil {
			diags = append(diags, d...)
		}
		if approved {
			if _, d := requireString(t, "selectedOutputPath", tpath); d != nil {
				diags = append(diags, d...)
			}
			if _, d := requireString(t, "provider", tpath); d != nil {
				diags = append(diags, d...)
			}
		}
	}
	return diags
}
