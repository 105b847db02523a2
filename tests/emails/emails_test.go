package emails_test

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Samy8769/mail-classifier-3/internal/emails"
)

func sampleConversation() emails.Conversation {
	received := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	return emails.Conversation{
		ConversationID: "conv-42",
		Emails: []emails.Email{
			{
				ConversationID: "conv-42",
				Subject:        "Commande banc optique",
				Sender:         "alice@ags.fr",
				Recipients:     []string{"bob@thales.fr"},
				Body:           "Bonjour, merci de confirmer la commande.",
				ReceivedAt:     received,
			},
			{
				ConversationID: "conv-42",
				Subject:        "RE: Commande banc optique",
				Sender:         "bob@thales.fr",
				Recipients:     []string{"alice@ags.fr"},
				Body:           "Commande confirmee, livraison en mai.",
				ReceivedAt:     received.Add(2 * time.Hour),
			},
		},
	}
}

func TestConversationText(t *testing.T) {
	conv := sampleConversation()
	text := conv.Text()

	for _, want := range []string{
		"From: alice@ags.fr",
		"Subject: Commande banc optique",
		"Bonjour, merci de confirmer la commande.",
		"From: bob@thales.fr",
		"Commande confirmee, livraison en mai.",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Text() missing %q", want)
		}
	}

	// Messages are separated by a blank line so chunking can split on them.
	if !strings.Contains(text, "livraison en mai.") ||
		!strings.Contains(text, "\n\nFrom: bob@thales.fr") {
		t.Error("messages should be separated by a blank line before the next header")
	}
}

func TestConversationFingerprint(t *testing.T) {
	conv := sampleConversation()

	first := conv.Fingerprint()
	if first == "" {
		t.Fatal("fingerprint should not be empty")
	}
	if second := conv.Fingerprint(); second != first {
		t.Error("fingerprint should be deterministic")
	}

	// Appending a message changes the identity and invalidates the cache key.
	grown := sampleConversation()
	grown.Emails = append(grown.Emails, emails.Email{
		ConversationID: "conv-42",
		Subject:        "RE: RE: Commande banc optique",
		Sender:         "alice@ags.fr",
		Body:           "Parfait, merci.",
	})
	if grown.Fingerprint() == first {
		t.Error("appending a message should change the fingerprint")
	}

	// Order matters: swapped bodies hash differently.
	swapped := sampleConversation()
	swapped.Emails[0], swapped.Emails[1] = swapped.Emails[1], swapped.Emails[0]
	if swapped.Fingerprint() == first {
		t.Error("message order should affect the fingerprint")
	}
}

func TestConversationFingerprintCoversHeaders(t *testing.T) {
	conv := sampleConversation()
	first := conv.Fingerprint()

	// The hash covers everything Text() feeds the pipeline, so an edited
	// subject or sender must invalidate the cache key too.
	edited := sampleConversation()
	edited.Emails[0].Subject = "Commande banc optique (corrige)"
	if edited.Fingerprint() == first {
		t.Error("subject changes should alter the fingerprint")
	}

	edited = sampleConversation()
	edited.Emails[0].Sender = "carol@ags.fr"
	if edited.Fingerprint() == first {
		t.Error("sender changes should alter the fingerprint")
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", emails.ErrNotFound, http.StatusNotFound},
		{"duplicate", emails.ErrDuplicate, http.StatusConflict},
		{"invalid email", emails.ErrInvalidEmail, http.StatusBadRequest},
		{"empty batch", emails.ErrEmptyBatch, http.StatusBadRequest},
		{"wrapped not found", errors.Join(emails.ErrNotFound, errors.New("context")), http.StatusNotFound},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := emails.MapHTTPStatus(tt.err); got != tt.want {
				t.Errorf("MapHTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFiltersFromQuery(t *testing.T) {
	values := url.Values{}
	values.Set("conversation", "conv-42")
	values.Set("sender", "alice@ags.fr")
	values.Set("topic", "commande")

	f := emails.FiltersFromQuery(values)

	if f.ConversationID == nil || *f.ConversationID != "conv-42" {
		t.Error("conversation filter not extracted")
	}
	if f.Sender == nil || *f.Sender != "alice@ags.fr" {
		t.Error("sender filter not extracted")
	}
	if f.Topic == nil || *f.Topic != "commande" {
		t.Error("topic filter not extracted")
	}

	empty := emails.FiltersFromQuery(url.Values{})
	if empty.ConversationID != nil || empty.Sender != nil || empty.Topic != nil {
		t.Error("empty query should produce empty filters")
	}
}
