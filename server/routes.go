package main

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"
	apperrors "github.com/goliatone/go-errors"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/internal/logging"
	"github.com/meikuraledutech/workflow/internal/platform"
)

// handlers serves the document API. deployer may be nil, which disables
// the deploy route.
type handlers struct {
	store    workflow.Store
	deployer *platform.Deployer
	logger   logging.Logger
}

func newApp(store workflow.Store, deployer *platform.Deployer, logger logging.Logger) *fiber.App {
	h := &handlers{store: store, deployer: deployer, logger: logging.Or(logger)}
	app := fiber.New()

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", func(c fiber.Ctx) error {
		if err := store.CreateSchema(c.Context()); err != nil {
			return h.fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema created"})
	})

	app.Delete("/schema", func(c fiber.Ctx) error {
		if err := store.DropSchema(c.Context()); err != nil {
			return h.fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema dropped"})
	})

	// ── Workflows (stateless) ─────────────────────────────────────────
	app.Post("/workflows/build", h.build)
	app.Post("/workflows/sanitize", h.sanitize)

	// ── Documents ─────────────────────────────────────────────────────
	app.Post("/documents", h.createDocument)
	app.Get("/documents", func(c fiber.Ctx) error {
		recs, err := store.ListDocuments(c.Context())
		if err != nil {
			return h.fail(c, err)
		}
		return c.JSON(recs)
	})
	app.Get("/documents/:id", h.getDocument)
	app.Delete("/documents/:id", func(c fiber.Ctx) error {
		if err := store.DeleteDocument(c.Context(), c.Params("id")); err != nil {
			return h.fail(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	// ── Deployments ───────────────────────────────────────────────────
	app.Get("/documents/:id/deployments", func(c fiber.Ctx) error {
		deps, err := store.ListDeployments(c.Context(), c.Params("id"))
		if err != nil {
			return h.fail(c, err)
		}
		return c.JSON(deps)
	})
	app.Post("/documents/:id/deployments", h.deploy)

	return app
}

// build turns a YAML or JSON blueprint into a document. With ?save=true the
// document is stored too and its id returned in the Location header.
func (h *handlers) build(c fiber.Ctx) error {
	bp, err := workflow.ParseBlueprint(c.Body())
	if err != nil {
		return h.fail(c, err)
	}
	b, err := bp.Build()
	if err != nil {
		return h.fail(c, err)
	}
	doc := b.Graph().Document()
	data, err := doc.JSON()
	if err != nil {
		return h.fail(c, err)
	}

	if c.Query("save") == "true" {
		rec, err := workflow.NewRecord(doc)
		if err != nil {
			return h.fail(c, err)
		}
		if _, err := h.store.SaveDocument(c.Context(), rec); err != nil {
			return h.fail(c, err)
		}
		c.Set(fiber.HeaderLocation, "/documents/"+rec.ID)
		c.Status(fiber.StatusCreated)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}

func (h *handlers) sanitize(c fiber.Ctx) error {
	s, err := workflow.Sanitize(c.Body())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"workflow":       s.Body,
		"removed_fields": s.Removed,
		"dropped":        s.Dropped,
	})
}

func (h *handlers) createDocument(c fiber.Ctx) error {
	doc, err := workflow.ParseDocument(c.Body())
	if err != nil {
		return h.fail(c, err)
	}
	rec, err := workflow.NewRecord(*doc)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := h.store.SaveDocument(c.Context(), rec)
	if err != nil {
		return h.fail(c, err)
	}
	h.logger.Info("document %s stored as %s", doc.Name, id)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (h *handlers) getDocument(c fiber.Ctx) error {
	rec, err := h.store.GetDocument(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	if rec == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "document not found"})
	}
	return c.JSON(fiber.Map{"record": rec, "document": json.RawMessage(rec.Document)})
}

type deployRequest struct {
	Environment string `json:"environment"`
}

func (h *handlers) deploy(c fiber.Ctx) error {
	if h.deployer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "platform is not configured"})
	}
	var req deployRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
	}
	rec, err := h.store.GetDocument(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	if rec == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "document not found"})
	}

	info, err := h.deployer.Deploy(c.Context(), rec.Document, req.Environment)
	if err != nil {
		return h.fail(c, err)
	}
	d := &workflow.Deployment{
		DocumentID:       rec.ID,
		RemoteWorkflowID: info.WorkflowID,
		Environment:      info.Environment,
		Status:           info.Status,
		URL:              info.EditorURL,
	}
	if _, err := h.store.AddDeployment(c.Context(), d); err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(info)
}

// fail maps an error category to a status code.
func (h *handlers) fail(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	body := fiber.Map{"error": err.Error()}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		status = statusFor(appErr.Category)
		body["error"] = appErr.Message
		if appErr.TextCode != "" {
			body["code"] = appErr.TextCode
		}
		if len(appErr.Metadata) > 0 {
			body["details"] = appErr.Metadata
		}
	}
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("%s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(body)
}

func statusFor(cat apperrors.Category) int {
	switch cat {
	case apperrors.CategoryValidation, apperrors.CategoryBadInput:
		return fiber.StatusUnprocessableEntity
	case apperrors.CategoryNotFound:
		return fiber.StatusNotFound
	case apperrors.CategoryConflict:
		return fiber.StatusConflict
	case apperrors.CategoryExternal:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
