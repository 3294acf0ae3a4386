package extract

// Merge combines structured and text extraction under a fixed precedence:
// level and points always come from the text side; every other count takes
// the structured value when non-zero, else the text value, else 0. The
// structured panel is precise but only present when it rendered; text is
// loose but always available after hydration.
func Merge(structured, text Record) Record {
	out := structured
	out.Level = text.Level
	out.Points = text.Points

	for _, f := range countFields {
		if p := out.field(f); *p == 0 {
			*p = *text.field(f)
		}
	}

	if out.Name == nil {
		out.Name = text.Name
	}
	return out
}
