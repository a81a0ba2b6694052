package contract

type acceptanceReportSchema struct{}

func (acceptanceReportSchema) validate(v map[string]interface{}, path []string) []Diagnostic {
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
		if _, d := requireString(t, "out", tpath); d != nil {
			diags = append(diags, d...)
		}
		if _, d := requireBool(t, "hasAlpha", tpath); d != nil {
			diags = append(diags, d...)
		}
		if _, d := requireNumber(t, "fileSizeBytes", tpath); d != nil {
			diags = append(diags, d...)
		}

		issues, d := requireArray(t, "issues", tpath)
		if d != nil {
			diags = append(diags, d...)
			continue
		}
		for j, rawIssue := range issues {
			ipath := appendPath(appendPath(tpath, "issues"), itoa(j))
			issue, ok := rawIssue.(map[string]interface{})
			if !ok {
				diags = append(diags, Diagnostic{Path: ipath, Code: "type_mismatch", Message: "expected object"})
				continue
			}
			level, d := requireString(issue, "level", ipath)
			diags = append(diags, d...)
			if level != "" {
				diags = append(diags, enumCheck(level, "level", []string{"error", "warning"}, ipath)...)
			}
			if _, d := requireString(issue, "code", ipath); d != nil {
				diags = append(diags, d...)
			}
			if _, d := requireString(issue, "message", ipath); d != nil {
				diags = append(diags, d...)
			}
		}
	}
	return diags
}
