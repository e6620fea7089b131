package web

import (
	"net/http"
	"net/url"
	"strings"

	vm "github.com/bejocbrian/bringYourKey/internal/adapter/driving/web/viewmodel"
)

const (
	flashCookieName = "byok_flash"
	flashOK         = "ok"
	flashError      = "error"
)

// setFlash stores a one-shot message for the next dashboard render.
func setFlash(w http.ResponseWriter, kind, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    url.QueryEscape(kind + ":" + message),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   60,
	})
}

// popFlash reads and clears the flash message, if any.
func popFlash(w http.ResponseWriter, r *http.Request) *vm.FlashViewModel {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})

	raw, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return nil
	}
	kind, message, ok := strings.Cut(raw, ":")
	if !ok || message == "" {
		return nil
	}
	if kind != flashOK {
		kind = flashError
	}
	return &vm.FlashViewModel{Kind: kind, Message: message}
}

// redirectHome sends the browser back to the dashboard after a form post.
func redirectHome(w http.ResponseWriter, r *http.Request, kind, message string) {
	setFlash(w, kind, message)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
