package enginetest

import (
	"context"
	"errors"
	"testing"

	"github.com/use-agent/gazette/bridge"
	"github.com/use-agent/gazette/models"
)

func TestEngine_ItemsScript(t *testing.T) {
	e := New(map[string]string{
		"https://example.com": `<ul><li><a href="https://example.com/1">One</a></li><li><a href="https://example.com/2">Two</a></li></ul>`,
	}, map[string]ScriptFunc{"toc": Items("li")})

	if err := e.Navigate(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	b := bridge.New()
	if err := e.Inject(context.Background(), "toc", b); err != nil {
		t.Fatalf("Inject: %v", err)
	}

	var links []string
	for m := range b.Messages() {
		if m.Kind == bridge.Done {
			break
		}
		links = append(links, m.Link)
	}
	if len(links) != 2 || links[1] != "https://example.com/2" {
		t.Errorf("links = %v", links)
	}
	if got := e.Navigations(); len(got) != 1 {
		t.Errorf("Navigations() = %v", got)
	}
}

func TestEngine_LoadError(t *testing.T) {
	e := New(nil, nil)
	e.LoadErrors["https://down.example"] = errors.New("net::ERR_INTERNET_DISCONNECTED")

	err := e.Navigate(context.Background(), "https://down.example")
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeNavigation {
		t.Fatalf("Navigate error = %v, want NAVIGATION_FAILED", err)
	}
	if err := e.Inject(context.Background(), "x", bridge.New()); err == nil {
		t.Error("Inject without a loaded page should fail")
	}
}
