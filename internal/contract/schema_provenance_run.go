package contract

type provenanceRunSchema struct{}

func (provenanceRunSchema) validate(v map[string]interface{}, path []string) []Diagnostic {
	var diags []Diagnostic

	for _, f := range []string{"contractVersion", "runId", "inputHash", "startedAt", "finishedAt"} {
		if _, d := requireString(v, f, path); d != nil {
			diags = append(diags, d...)
		}
	}

	results, d := requireArray(v, "results", path)
	if d != nil {
		diags = append(diags, d...)
	}
	for i, raw := range results {
		rpath := appendPath(appendPath(path, "results"), itoa(i))
		r, ok := raw.(map[string]interface{})
		if !ok {
			diags = append(diags, Diagnostic{Path: rpath, Code: "type_mismatch", Message: "expected object"})
			continue
		}
		for _, f := range []string{"targetId", "provider", "model", "primaryOutputPath"} {
			if _, d := requireString(r, f, rpath); d != nil {
				diags = append(diags, d...)
			}
		}
		if _, d := requireArray(r, "candidates", rpath); d != nil {
			diags = append(diags, d...)
		}
	}

	failures, d := requireArray(v, "failures", path)
	if d != nil {
		diags = append(diags, d...)
	}
	for i, raw := range failures {
		fpath := appendPath(appendPath(path, "failures"), itoa(i))
		f, ok := raw.(map[string]interface{})
		if !ok {
			diags = append(diags, Diagnostic{Path: fpath, Code: "type_mismatch", Message: "expected object"})
			continue
		}
		if _, d := requireString(f, "targetId", fpath); d != nil {
			diags = append(diags, d...)
		}
		if _, d := requireArray(f, "attemptedProviders", fpath); d != nil {
			diags = append(diags, d...)
		}
	}

	return diags
}
