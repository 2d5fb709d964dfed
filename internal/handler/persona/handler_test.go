package persona

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/trailblazer/backend/internal/model/persona"
)

func TestListCharacters(t *testing.T) {
	r := chi.NewRouter()
	New(persona.NewSeedStore()).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/characters", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var got []map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 characters, got %d", len(got))
	}
	if got[0]["key"] != "marie_curie" || got[0]["display"] != "Marie Curie" {
		t.Fatalf("unexpected first character: %v", got[0])
	}
	if _, leaked := got[0]["system"]; leaked {
		t.Fatal("system prompt must not be exposed")
	}
}
