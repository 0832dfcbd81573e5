package main

import "testing"

func TestWebhookParams(t *testing.T) {
	p := webhookParams("https://bot.example.com/api/webhook/telegram", "s3cret")
	if p["url"] != "https://bot.example.com/api/webhook/telegram" || p["secret_token"] != "s3cret" {
		t.Fatalf("unexpected params %v", p)
	}
	if p["allowed_updates"] != `["message"]` {
		t.Fatalf("unexpected allowed_updates %q", p["allowed_updates"])
	}

	if _, ok := webhookParams("https://x", "")["secret_token"]; ok {
		t.Fatal("empty secret must be omitted")
	}
}
