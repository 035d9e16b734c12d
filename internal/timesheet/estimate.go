package timesheet

// AttributeEstimates sums, per user, the full original estimate of every
// issue the user logged time against.
//
// An issue shared by several users counts its whole estimate toward each
// of them. Totals and accuracy figures in the report are defined against
// this per-user accountability view, so it is not split.
func AttributeEstimates(userIssueHours map[string]map[string]float64, index Index) map[string]float64 {
	out := make(map[string]float64, len(userIssueHours))
	for user, issues := range userIssueHours {
		total := 0.0
		for key := range issues {
			is, ok := index[key]
			if !ok {
				continue
			}
			if est := is.EstimateHours(); est > 0 {
				total += est
			}
		}
		out[user] = total
	}
	return out
}
