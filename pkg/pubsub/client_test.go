package pubsub

import "testing"

func TestResourceNames(t *testing.T) {
	tests := []struct {
		name    string
		project string
		input   string
		fn      func(string, string) string
		want    string
	}{
		{"bare topic", "texnika-prod", "texnika-search-events", TopicResourceName, "projects/texnika-prod/topics/texnika-search-events"},
		{"full topic", "other", "projects/p/topics/t", TopicResourceName, "projects/p/topics/t"},
		{"bare subscription", "texnika-prod", " texnika-search-resync ", SubscriptionResourceName, "projects/texnika-prod/subscriptions/texnika-search-resync"},
		{"topic path as subscription", "texnika-prod", "projects/p/topics/t", SubscriptionResourceName, "projects/texnika-prod/subscriptions/projects/p/topics/t"},
		{"empty name", "texnika-prod", "", TopicResourceName, ""},
		{"missing project", "", "t", TopicResourceName, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.project, tt.input); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
