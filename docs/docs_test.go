package docs

import (
	"encoding/json"
	"testing"

	"github.com/swaggo/swag"
)

func TestRegisteredDocIsValidJSON(t *testing.T) {
	raw, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	if err != nil {
		t.Fatalf("ReadDoc: %v", err)
	}
	var doc struct {
		Paths       map[string]map[string]any `json:"paths"`
		Definitions map[string]struct {
			Properties map[string]any `json:"properties"`
		} `json:"definitions"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("doc is not JSON: %v", err)
	}
	for _, path := range []string{
		"/functions/v1/get-breaking-markets",
		"/functions/v1/send-breaking-daily",
		"/functions/v1/subscribe-newsletter",
		"/functions/v1/unsubscribe-newsletter",
		"/functions/v1/sync-markets",
	} {
		if _, ok := doc.Paths[path]; !ok {
			t.Fatalf("missing path %s", path)
		}
	}
	if _, ok := doc.Definitions["service.SyncResult"].Properties["next_offset"]; !ok {
		t.Fatalf("SyncResult lacks next_offset")
	}
}
