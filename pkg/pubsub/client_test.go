package pubsub

import "testing"

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project string
		name    string
		want    string
	}{
		{"proj", "booking-events", "projects/proj/topics/booking-events"},
		{"proj", " booking-events ", "projects/proj/topics/booking-events"},
		{"", "projects/other/topics/x", "projects/other/topics/x"},
		{"", "booking-events", ""},
		{"proj", "", ""},
	}
	for _, tc := range cases {
		if got := topicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("topicResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("x") != nil {
		t.Fatal("expected nil publisher from nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}
