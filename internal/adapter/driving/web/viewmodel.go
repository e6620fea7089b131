package web

import (
	"fmt"
	"strings"
	"time"

	vm "github.com/bejocbrian/bringYourKey/internal/adapter/driving/web/viewmodel"
	"github.com/bejocbrian/bringYourKey/internal/domain/model"
)

const createdLayout = "Jan 2, 15:04"

// providerState is everything the dashboard knows about one provider beyond
// its static capabilities.
type providerState struct {
	summary   model.CredentialSummary
	allowed   bool
	supported bool
}

// toProviderCardViewModel converts a provider's capabilities and state into a
// dashboard card.
func toProviderCardViewModel(caps model.Capabilities, st providerState) vm.ProviderCardViewModel {
	card := vm.ProviderCardViewModel{
		ID:               string(caps.Provider),
		Name:             caps.Name,
		DescriptionHTML:  RenderMarkdown(caps.Description),
		DocsURL:          caps.DocsURL,
		MaxDuration:      caps.MaxDuration,
		AspectRatios:     aspectRatioStrings(caps.SupportedAspectRatios),
		CredentialStatus: string(st.summary.Status),
		StatusLabel:      credentialStatusLabel(st.summary.Status),
		NeedsReentry:     st.summary.Status == model.CredentialStatusInvalid,
		Allowed:          st.allowed,
		Supported:        st.supported,
		CredentialURL:    "/credentials",
		RemoveURL:        fmt.Sprintf("/credentials/%s/delete", caps.Provider),
	}
	if st.summary.Status != model.CredentialStatusUnset {
		card.KeyName = st.summary.DisplayName
		if !st.summary.CreatedAt.IsZero() {
			card.KeyAdded = st.summary.CreatedAt.Local().Format(createdLayout)
		}
	}
	return card
}

// toProviderOptionViewModel converts capabilities into a generation form option.
func toProviderOptionViewModel(caps model.Capabilities) vm.ProviderOptionViewModel {
	return vm.ProviderOptionViewModel{
		ID:           string(caps.Provider),
		Name:         caps.Name,
		Durations:    caps.DurationOptions(),
		AspectRatios: aspectRatioStrings(caps.SupportedAspectRatios),
	}
}

// toJobRowViewModel converts a generation job into a job list row.
func toJobRowViewModel(job model.GenerationJob, providerName string, now time.Time) vm.JobRowViewModel {
	row := vm.JobRowViewModel{
		ID:           job.ID,
		ProviderName: providerName,
		PromptHTML:   RenderPrompt(job.Prompt),
		Duration:     job.Settings.Duration,
		AspectRatio:  string(job.Settings.AspectRatio),
		Status:       string(job.Status),
		StatusLabel:  jobStatusLabel(job),
		Running:      !job.IsTerminal(),
		Created:      job.CreatedAt.Local().Format(createdLayout),
		Age:          humanAge(now.Sub(job.CreatedAt)),
		CancelURL:    fmt.Sprintf("/generations/%s/cancel", job.ID),
		DeleteURL:    fmt.Sprintf("/generations/%s/delete", job.ID),
	}

	switch job.Status {
	case model.JobStatusCompleted:
		row.ResultURL = job.ResultReference
		row.IsVideoFile = isPlayable(job.ResultReference)
	case model.JobStatusFailed:
		row.ErrorMessage = PlainText(job.ErrorMessage)
	}
	return row
}

func credentialStatusLabel(s model.CredentialStatus) string {
	switch s {
	case model.CredentialStatusValid:
		return "Key saved"
	case model.CredentialStatusInvalid:
		return "Invalid"
	default:
		return "No key"
	}
}

func jobStatusLabel(job model.GenerationJob) string {
	switch job.Status {
	case model.JobStatusPending:
		return "Queued"
	case model.JobStatusProcessing:
		return "Generating"
	case model.JobStatusCompleted:
		return "Ready"
	default:
		if job.FailureKind == model.FailureCancelled {
			return "Cancelled"
		}
		return "Failed"
	}
}

// isPlayable reports whether ref can go straight into a <video> element.
// Provider-hosted gs:// URIs cannot.
func isPlayable(ref string) bool {
	return strings.HasPrefix(ref, "/") ||
		strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "http://")
}

func humanAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func aspectRatioStrings(ratios []model.AspectRatio) []string {
	out := make([]string, 0, len(ratios))
	for _, a := range ratios {
		out = append(out, string(a))
	}
	return out
}
