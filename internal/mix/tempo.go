package mix

// Scale returns the playback-rate ratio that retunes sourceBPM to targetBPM.
// A ratio above 1 speeds the source up.
func Scale(sourceBPM, targetBPM float64) (float64, error) {
	if sourceBPM <= 0 {
		return 0, invalidParam("source bpm must be positive, got %v", sourceBPM)
	}
	if targetBPM <= 0 {
		return 0, invalidParam("target bpm must be positive, got %v", targetBPM)
	}
	return targetBPM / sourceBPM, nil
}
