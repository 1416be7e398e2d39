package applog

// Entry is one classified line of the application's output
type Entry struct {
	Level   string `json:"level"` // 3-letter code: DBG, INF, WRN, ERR
	Message string `json:"message"`
	Raw     string `json:"raw"`
}
