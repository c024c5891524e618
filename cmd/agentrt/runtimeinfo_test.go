package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintConversationInfoReportsLayout(t *testing.T) {
	root := t.TempDir()
	var buf bytes.Buffer
	printConversationInfo(&buf, root, "conv-1")
	out := buf.String()

	if !strings.Contains(out, "conversation conv-1:") {
		t.Fatalf("expected conversation header, got %q", out)
	}
	if !strings.Contains(out, "materialized: false") {
		t.Fatalf("expected unmaterialized working dir, got %q", out)
	}
}
