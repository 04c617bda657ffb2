package opslog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meikuraledutech/workflow/internal/wiki"
)

// ChallengesFile collects challenges the wiki did not take.
const ChallengesFile = "challenges.jsonl"

// RiskAssessment grades a challenge by how many risks it names.
type RiskAssessment struct {
	Level string   `json:"risk_level"`
	Risks []string `json:"risks"`
}

// Challenge is a department's structured response to a proposal.
type Challenge struct {
	ID             string          `json:"challenge_id"`
	ProposalID     string          `json:"proposal_id" validate:"required"`
	Department     string          `json:"department" validate:"required"`
	Type           string          `json:"challenge_type" validate:"oneof=risk_identified better_alternative optimization feasibility_concern question"`
	Notes          string          `json:"notes" validate:"required"`
	Recommendation string          `json:"recommendation" validate:"oneof=approve_as_is approve_with_changes need_more_info reject"`
	Confidence     string          `json:"confidence_level" validate:"oneof=very_high high medium low"`
	Risks          []string        `json:"-"`
	RiskAssessment *RiskAssessment `json:"risk_assessment,omitempty"`
	Alternative    map[string]any  `json:"alternative_approach,omitempty"`
	Impact         map[string]any  `json:"impact_analysis,omitempty"`
	Reasoning      string          `json:"first_principles_reasoning,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	PageURL        string          `json:"page_url,omitempty"`
	WikiLogged     bool            `json:"notion_logged"`
	Mode           string          `json:"mode,omitempty"`
}

func riskLevel(n int) string {
	switch {
	case n > 2:
		return "high"
	case n > 0:
		return "medium"
	default:
		return "low"
	}
}

// ProposeImprovement records a challenge to a proposal. Every challenge is
// kept in challenge_<id>.json; it is also filed in the improvements database
// when configured, or appended to challenges.jsonl otherwise.
func (j *Journal) ProposeImprovement(ctx context.Context, c Challenge) (*Challenge, error) {
	if c.Recommendation == "" {
		c.Recommendation = "approve_with_changes"
	}
	if c.Confidence == "" {
		c.Confidence = "high"
	}
	if err := j.check(c); err != nil {
		return nil, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()[:8]
	}
	if len(c.Risks) > 0 {
		c.RiskAssessment = &RiskAssessment{Level: riskLevel(len(c.Risks)), Risks: c.Risks}
	}
	c.Timestamp = j.now()
	log := j.scoped(c.Department, "propose_improvement")
	log.Info("challenge submitted: %s for proposal %s", c.Type, c.ProposalID)

	if j.wiki != nil && j.targets.ImprovementsDB != "" {
		level := riskLevel(len(c.Risks))
		props := map[string]any{
			"Department": wiki.RichTextProperty(c.Department),
			"Impact":     wiki.SelectProperty(level),
		}
		title := fmt.Sprintf("Challenge: %s for %s", c.Type, c.ProposalID)
		page, err := j.wiki.CreatePage(ctx, j.targets.ImprovementsDB, title, props, challengeBlocks(&c))
		if err != nil {
			log.Error("filing challenge failed: %v", err)
		} else {
			c.PageURL, c.WikiLogged = page.URL, true
		}
	}

	if _, err := j.dir.WriteJSON("challenge_"+c.ID+".json", c); err != nil {
		return nil, err
	}
	if !c.WikiLogged {
		c.Mode = ModeLocal
		if err := j.dir.AppendJSONL(ChallengesFile, c); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func challengeBlocks(c *Challenge) []wiki.Block {
	out := []wiki.Block{
		wiki.Paragraph(wiki.Text(c.Notes)),
		wiki.Bullet(wiki.Bold("Recommendation: "), wiki.Text(strings.ReplaceAll(c.Recommendation, "_", " "))),
		wiki.Bullet(wiki.Bold("Confidence: "), wiki.Text(strings.ReplaceAll(c.Confidence, "_", " "))),
	}
	if c.RiskAssessment != nil {
		out = append(out, wiki.Heading(3, "Risks ("+c.RiskAssessment.Level+")"))
		for _, r := range c.RiskAssessment.Risks {
			out = append(out, wiki.Bullet(wiki.Text(r)))
		}
	}
	if c.Reasoning != "" {
		out = append(out, wiki.Heading(3, "Reasoning"), wiki.Paragraph(wiki.Text(c.Reasoning)))
	}
	return out
}
