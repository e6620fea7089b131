package web

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/a-h/templ"

	vm "github.com/bejocbrian/bringYourKey/internal/adapter/driving/web/viewmodel"
)

// refreshSeconds is the dashboard reload interval while jobs are running.
const refreshSeconds = 3

// htmlWriter accumulates the first write error so components can emit markup
// without checking every call.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (hw *htmlWriter) raw(s string) {
	if hw.err != nil {
		return
	}
	_, hw.err = io.WriteString(hw.w, s)
}

func (hw *htmlWriter) text(s string) {
	hw.raw(templ.EscapeString(s))
}

func (hw *htmlWriter) rawf(format string, args ...any) {
	hw.raw(fmt.Sprintf(format, args...))
}

func (hw *htmlWriter) render(ctx context.Context, c templ.Component) {
	if hw.err != nil {
		return
	}
	hw.err = c.Render(ctx, hw.w)
}

// Layout wraps body in the HTML page shell.
func Layout(title string, autoRefresh bool, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		hw.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		if autoRefresh {
			hw.rawf(`<meta http-equiv="refresh" content="%d">`, refreshSeconds)
		}
		hw.raw(`<title>`)
		hw.text(title)
		hw.raw(`</title><link rel="stylesheet" href="/static/style.css"></head><body>`)
		hw.raw(`<header class="topbar"><h1>`)
		hw.text(title)
		hw.raw(`</h1><span class="tagline">Your keys, your videos. Keys are encrypted on this device.</span></header>`)
		hw.raw(`<main>`)
		hw.render(ctx, body)
		hw.raw(`</main></body></html>`)
		return hw.err
	})
}

// Dashboard renders the provider cards, generation form and job list.
func Dashboard(d vm.DashboardViewModel) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}

		if d.Flash != nil {
			hw.rawf(`<div class="flash flash-%s" role="status">`, templ.EscapeString(d.Flash.Kind))
			hw.text(d.Flash.Message)
			hw.raw(`</div>`)
		}

		hw.raw(`<section class="providers"><h2>Providers</h2><div class="cards">`)
		for _, p := range d.Providers {
			hw.render(ctx, providerCard(p, d.CSRFToken))
		}
		hw.raw(`</div></section>`)

		hw.render(ctx, generationForm(d))
		hw.render(ctx, jobList(d.Jobs, d.CSRFToken))

		return hw.err
	})
}

func providerCard(p vm.ProviderCardViewModel, csrf string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}

		hw.rawf(`<article class="card" id="provider-%s">`, templ.EscapeString(p.ID))
		hw.raw(`<header><h3>`)
		hw.text(p.Name)
		hw.rawf(`</h3><span class="badge badge-%s">`, templ.EscapeString(p.CredentialStatus))
		hw.text(p.StatusLabel)
		hw.raw(`</span>`)
		if !p.Allowed {
			hw.raw(`<span class="badge badge-locked">Not enabled</span>`)
		} else if !p.Supported {
			hw.raw(`<span class="badge badge-soon">Coming soon</span>`)
		}
		hw.raw(`</header>`)

		hw.raw(`<div class="description">`)
		hw.raw(p.DescriptionHTML)
		hw.raw(`</div><p class="limits">Up to `)
		hw.text(strconv.Itoa(p.MaxDuration))
		hw.raw(`s · `)
		for i, a := range p.AspectRatios {
			if i > 0 {
				hw.raw(", ")
			}
			hw.text(a)
		}
		hw.raw(` · <a href="`)
		hw.text(p.DocsURL)
		hw.raw(`" target="_blank" rel="noopener">Docs</a></p>`)

		if p.KeyName != "" {
			hw.raw(`<p class="key-meta">`)
			hw.text(p.KeyName)
			if p.KeyAdded != "" {
				hw.raw(` · added `)
				hw.text(p.KeyAdded)
			}
			hw.raw(`</p>`)
		}
		if p.NeedsReentry {
			hw.raw(`<p class="warning">This key can no longer be decrypted. Enter it again.</p>`)
		}

		hw.rawf(`<form method="post" action="%s" class="key-form">`, templ.EscapeString(p.CredentialURL))
		hw.render(ctx, csrfField(csrf))
		hw.rawf(`<input type="hidden" name="provider" value="%s">`, templ.EscapeString(p.ID))
		hw.raw(`<input type="password" name="key" placeholder="API key" autocomplete="off" required>`)
		hw.raw(`<input type="text" name="name" placeholder="Label (optional)">`)
		if p.CredentialStatus == "unset" {
			hw.raw(`<button type="submit">Save key</button></form>`)
		} else {
			hw.raw(`<button type="submit">Replace key</button></form>`)
			hw.rawf(`<form method="post" action="%s" class="inline">`, templ.EscapeString(p.RemoveURL))
			hw.render(ctx, csrfField(csrf))
			hw.raw(`<button type="submit" class="danger">Remove key</button></form>`)
		}

		hw.raw(`</article>`)
		return hw.err
	})
}

func generationForm(d vm.DashboardViewModel) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}

		hw.raw(`<section class="generate"><h2>New video</h2>`)
		if len(d.Generatable) == 0 {
			hw.raw(`<p class="empty">Add a valid API key for an available provider to start generating.</p></section>`)
			return hw.err
		}

		hw.raw(`<form method="post" action="/generations">`)
		hw.render(ctx, csrfField(d.CSRFToken))

		hw.raw(`<label>Provider <select name="provider">`)
		for _, o := range d.Generatable {
			hw.rawf(`<option value="%s">`, templ.EscapeString(o.ID))
			hw.text(o.Name)
			hw.raw(`</option>`)
		}
		hw.raw(`</select></label>`)

		hw.rawf(`<label>Prompt <textarea name="prompt" maxlength="%d" rows="3" required></textarea></label>`, d.MaxPrompt)

		// Options from every offered provider; the service rejects combinations
		// the chosen provider does not support.
		hw.raw(`<label>Duration <select name="duration">`)
		for _, dur := range unionDurations(d.Generatable) {
			hw.rawf(`<option value="%d">%ds</option>`, dur, dur)
		}
		hw.raw(`</select></label>`)

		hw.raw(`<label>Aspect ratio <select name="aspect_ratio">`)
		for _, a := range unionAspectRatios(d.Generatable) {
			hw.rawf(`<option value="%s">`, templ.EscapeString(a))
			hw.text(a)
			hw.raw(`</option>`)
		}
		hw.raw(`</select></label>`)

		hw.raw(`<button type="submit">Generate</button></form></section>`)
		return hw.err
	})
}

func jobList(jobs []vm.JobRowViewModel, csrf string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}

		hw.raw(`<section class="jobs"><h2>Generations</h2>`)
		if len(jobs) == 0 {
			hw.raw(`<p class="empty">No generations yet.</p></section>`)
			return hw.err
		}

		hw.raw(`<ul class="job-list">`)
		for _, j := range jobs {
			hw.rawf(`<li class="job job-%s" id="job-%s">`, templ.EscapeString(j.Status), templ.EscapeString(j.ID))
			hw.raw(`<div class="job-head"><span class="badge">`)
			hw.text(j.StatusLabel)
			hw.raw(`</span> <strong>`)
			hw.text(j.ProviderName)
			hw.raw(`</strong> <span class="muted">`)
			hw.text(fmt.Sprintf("%ds · %s · %s", j.Duration, j.AspectRatio, j.Age))
			hw.raw(`</span></div><div class="prompt">`)
			hw.raw(j.PromptHTML)
			hw.raw(`</div>`)

			if j.ResultURL != "" {
				hw.render(ctx, resultLink(j))
			}
			if j.ErrorMessage != "" {
				// Already HTML-safe.
				hw.raw(`<p class="error">`)
				hw.raw(j.ErrorMessage)
				hw.raw(`</p>`)
			}

			hw.raw(`<div class="job-actions">`)
			if j.Running {
				hw.rawf(`<form method="post" action="%s" class="inline">`, templ.EscapeString(j.CancelURL))
				hw.render(ctx, csrfField(csrf))
				hw.raw(`<button type="submit">Cancel</button></form>`)
			}
			hw.rawf(`<form method="post" action="%s" class="inline">`, templ.EscapeString(j.DeleteURL))
			hw.render(ctx, csrfField(csrf))
			hw.raw(`<button type="submit" class="danger">Delete</button></form>`)
			hw.raw(`</div></li>`)
		}
		hw.raw(`</ul></section>`)
		return hw.err
	})
}

// resultLink renders a playable or clickable result. References whose scheme
// fails templ.URL sanitization (gs://, javascript: and the like) are shown as
// text.
func resultLink(j vm.JobRowViewModel) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		safe := templ.URL(j.ResultURL)
		if safe == templ.FailedSanitizationURL {
			hw.raw(`<p class="muted">Result: <code>`)
			hw.text(j.ResultURL)
			hw.raw(`</code></p>`)
			return hw.err
		}

		href := templ.EscapeString(string(safe))
		if j.IsVideoFile {
			hw.rawf(`<video controls preload="metadata" src="%s"></video>`, href)
		}
		hw.rawf(`<p><a href="%s" target="_blank" rel="noopener">Open video</a></p>`, href)
		return hw.err
	})
}

func csrfField(token string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<input type="hidden" name="%s" value="%s">`,
			csrfFormField, templ.EscapeString(token))
		return err
	})
}

func unionDurations(opts []vm.ProviderOptionViewModel) []int {
	seen := make(map[int]bool)
	var out []int
	for _, o := range opts {
		for _, d := range o.Durations {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	slices.Sort(out)
	return out
}

func unionAspectRatios(opts []vm.ProviderOptionViewModel) []string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range opts {
		for _, a := range o.AspectRatios {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	return out
}
