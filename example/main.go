package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/sqlite"
)

func main() {
	ctx := context.Background()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = ":memory:"
	}
	store, err := sqlite.Open(dsn)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer store.Close()

	// 1. Create tables
	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema created")

	// ── Guarded AI agent (star topology) ──────────────────────────────
	chat := workflow.NewBuilder("Support Chat", workflow.WithTags("support"))
	hook, err := chat.Webhook("chat/start", "POST")
	if err != nil {
		log.Fatalf("webhook: %v", err)
	}
	if _, err := chat.GuardedAgent(hook, "gpt-4o", map[string]any{"text": "={{$json.query}}"}); err != nil {
		log.Fatalf("agent: %v", err)
	}
	chatDoc := chat.Graph().Document()
	fmt.Println(chatDoc.Summary())

	// ── Onboarding router (switch with fallback) ──────────────────────
	onboarding := workflow.NewBuilder("Onboarding Router")
	form, err := onboarding.Webhook("onboarding", "POST")
	if err != nil {
		log.Fatalf("webhook: %v", err)
	}
	route, err := onboarding.Switch("Route by Role", "={{$json.role}}", []workflow.SwitchRule{
		{Value: "Developer", Output: 0},
		{Value: "Designer", Output: 1},
	}, 2)
	if err != nil {
		log.Fatalf("switch: %v", err)
	}
	onboarding.NewRow(300)
	dev, _ := onboarding.Slack("Notify Engineering", "#eng-onboarding", "New developer: {{$json.name}}")
	design, _ := onboarding.Slack("Notify Design", "#design-onboarding", "New designer: {{$json.name}}")
	other, _ := onboarding.HTTPRequest("Log Other", "POST", "https://crm.example.com/api/signups")

	must(onboarding.Connect(form, route))
	must(onboarding.Connect(route, dev, workflow.FromOutput(0)))
	must(onboarding.Connect(route, design, workflow.FromOutput(1)))
	must(onboarding.Connect(route, other, workflow.FromOutput(2)))

	// ── Store both ────────────────────────────────────────────────────
	for _, b := range []*workflow.Builder{chat, onboarding} {
		rec, err := workflow.NewRecord(b.Graph().Document())
		if err != nil {
			log.Fatalf("record: %v", err)
		}
		id, err := store.SaveDocument(ctx, rec)
		if err != nil {
			log.Fatalf("save: %v", err)
		}
		fmt.Printf("stored %q as %s\n", rec.Name, id)
	}

	// ── Retrieve ──────────────────────────────────────────────────────
	rec, err := store.FindDocumentByName(ctx, "Onboarding Router")
	if err != nil || rec == nil {
		log.Fatalf("find: %v", err)
	}
	doc, err := rec.Decode()
	if err != nil {
		log.Fatalf("decode: %v", err)
	}
	fmt.Println("\nonboarding connections:")
	printJSON(doc.Connections)

	// ── Sanitize for the platform API ─────────────────────────────────
	clean, err := workflow.SanitizeDocument(*doc)
	if err != nil {
		log.Fatalf("sanitize: %v", err)
	}
	fmt.Printf("\nsanitized: dropped %v, removed %d node fields\n", clean.Dropped, len(clean.Removed))

	// ── Cleanup ───────────────────────────────────────────────────────
	if err := store.DeleteDocument(ctx, rec.ID); err != nil {
		log.Fatalf("delete: %v", err)
	}
	fmt.Println("document deleted")
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
