package service

import (
	"encoding/json"
	"log"
	"time"
)

// logEvent emits one JSON log line for component events (mirror write
// warnings, reconcile repairs). Request-level logging lives in the HTTP
// middleware; this covers work that happens below it.
func logEvent(data map[string]any) {
	data["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		data["level"] = "info"
	}

	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal event log: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
