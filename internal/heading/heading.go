package heading

// Reference is one heading report from the vessel's existing compass,
// suitable for JSON and MQTT. Used by the operator to cross-check
// headings before and after calibration.
type Reference struct {
	Time       string  `json:"time"`        // RFC3339
	HeadingDeg float64 `json:"heading_deg"` // 0..360
	Sentence   string  `json:"sentence"`    // "HDG", "HDT" or "RMC"
	True       bool    `json:"true"`        // true vs magnetic heading
}
