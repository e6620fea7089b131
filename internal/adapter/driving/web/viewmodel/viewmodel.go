// Package viewmodel defines presentation-ready structs for the dashboard
// components. View models decouple rendering from domain model types.
package viewmodel

// DashboardViewModel holds everything the dashboard page renders.
type DashboardViewModel struct {
	Providers []ProviderCardViewModel
	Jobs      []JobRowViewModel
	// Generatable lists the providers the generation form offers: allowed,
	// backed by an adapter and holding a valid key.
	Generatable []ProviderOptionViewModel
	Flash       *FlashViewModel
	CSRFToken   string
	// AutoRefresh is set while at least one job is still running.
	AutoRefresh bool
	MaxPrompt   int
}

// ProviderCardViewModel holds presentation-ready data for one provider card.
type ProviderCardViewModel struct {
	ID              string
	Name            string
	DescriptionHTML string // sanitized
	DocsURL         string
	MaxDuration     int
	AspectRatios    []string

	CredentialStatus string // unset | valid | invalid
	StatusLabel      string
	KeyName          string
	KeyAdded         string
	NeedsReentry     bool

	Allowed   bool
	Supported bool

	CredentialURL string // POST target for storing a key
	RemoveURL     string // POST target for removing a key
}

// ProviderOptionViewModel is one entry in the generation form's provider select.
type ProviderOptionViewModel struct {
	ID           string
	Name         string
	Durations    []int
	AspectRatios []string
}

// JobRowViewModel holds presentation-ready data for one generation job.
type JobRowViewModel struct {
	ID           string
	ProviderName string
	PromptHTML   string // sanitized
	Duration     int
	AspectRatio  string
	Status       string
	StatusLabel  string
	Running      bool
	ResultURL    string
	IsVideoFile  bool
	ErrorMessage string
	Created      string
	Age          string

	CancelURL string
	DeleteURL string
}

// FlashViewModel is the one-shot message shown after a form post.
type FlashViewModel struct {
	Kind    string // ok | error
	Message string
}
