package executor

// Attempt records one run of the script.
type Attempt struct {
	Attempt       int     `json:"attempt"`
	ReturnCode    int     `json:"return_code"`
	Output        string  `json:"output"`
	Error         string  `json:"error"`
	ExecutionTime float64 `json:"execution_time"`
}

// InstallFailure records one library that could not be installed.
type InstallFailure struct {
	Library string `json:"library"`
	Error   string `json:"error"`
}

// InstallResult records the dependency-installation phase.
type InstallResult struct {
	Success   bool             `json:"success"`
	Installed []string         `json:"installed"`
	Failed    []InstallFailure `json:"failed,omitempty"`
}

// Result is the outcome of one execute call.
type Result struct {
	Success             bool           `json:"success"`
	Attempts            []Attempt      `json:"attempts"`
	FinalError          string         `json:"final_error,omitempty"`
	LibraryInstallation *InstallResult `json:"library_installation,omitempty"`
	ExecutionID         string         `json:"execution_id"`
	Timestamp           float64        `json:"timestamp"`
}
