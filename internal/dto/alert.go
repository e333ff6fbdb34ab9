package dto

// ScanResult summarises one run of the class lifecycle scanner.
type ScanResult struct {
	Emitted    int  `json:"emitted"`
	Suppressed int  `json:"suppressed"`
	Failed     int  `json:"failed"`
	Unlocked   bool `json:"unlocked,omitempty"`
}
