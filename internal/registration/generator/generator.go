// Package generator provides the built-in student generation backends: a
// rules-based identity generator, a template enrichment generator, and a
// deterministic photo reference generator.
package generator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campushq/registration/internal/registration/domain"
	"github.com/campushq/registration/internal/registration/usecase"
)

var firstNamesByLocale = map[string][]string{
	"pt-BR": {"Ana", "Bruno", "Camila", "Diego", "Elisa", "Felipe", "Gabriela", "Henrique", "Isabela", "João"},
	"en-US": {"Alice", "Benjamin", "Charlotte", "Daniel", "Emily", "Frank", "Grace", "Henry", "Isabel", "Jack"},
}

var lastNamesByLocale = map[string][]string{
	"pt-BR": {"Silva", "Souza", "Oliveira", "Santos", "Pereira", "Costa", "Almeida", "Ferreira"},
	"en-US": {"Smith", "Johnson", "Williams", "Brown", "Davis", "Miller", "Wilson", "Taylor"},
}

var streetsByLocale = map[string][]string{
	"pt-BR": {"Rua das Flores", "Avenida Paulista", "Rua XV de Novembro", "Alameda Santos"},
	"en-US": {"Maple Street", "Oak Avenue", "Cedar Lane", "Elm Drive"},
}

const defaultLocale = "en-US"

// RulesIdentityGenerator builds the base student identity from locale-aware
// name pools and the application's chosen major.
type RulesIdentityGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewRulesIdentityGenerator creates a new RulesIdentityGenerator seeded from
// the given source, or from entropy when seed is zero.
func NewRulesIdentityGenerator(seed uint64) *RulesIdentityGenerator {
	var rng *rand.Rand
	if seed != 0 {
		rng = rand.New(rand.NewPCG(seed, seed))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &RulesIdentityGenerator{
		rng: rng,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// GenerateIdentity produces a new student record for the application. The
// student number embeds the enrollment year and the application ID so it is
// unique without coordination.
func (g *RulesIdentityGenerator) GenerateIdentity(_ context.Context, application *domain.Application) (*domain.Student, error) {
	locale := application.Locale
	if _, ok := firstNamesByLocale[locale]; !ok {
		locale = defaultLocale
	}

	// Partitions consume concurrently; the shared source needs the lock.
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	firstNames := firstNamesByLocale[locale]
	lastNames := lastNamesByLocale[locale]
	streets := streetsByLocale[locale]

	ageYears := 18 + g.rng.IntN(7)
	birthDate := now.AddDate(-ageYears, -g.rng.IntN(12), -g.rng.IntN(28))

	student := &domain.Student{
		ID:            uuid.Must(uuid.NewV7()),
		ApplicationID: application.ID,
		FullName:      fmt.Sprintf("%s %s", firstNames[g.rng.IntN(len(firstNames))], lastNames[g.rng.IntN(len(lastNames))]),
		StudentNumber: fmt.Sprintf("%d%08d", now.Year(), application.ID),
		BirthDate:     time.Date(birthDate.Year(), birthDate.Month(), birthDate.Day(), 0, 0, 0, 0, time.UTC),
		Address:       fmt.Sprintf("%s %d", streets[g.rng.IntN(len(streets))], 1+g.rng.IntN(999)),
		Course:        application.Major,
		GPA:           2.0 + g.rng.Float64()*2.0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	return student, nil
}

// TemplateEnrichmentGenerator produces the narrative profile from templates.
// It stands in for the language model backend behind the same interface.
type TemplateEnrichmentGenerator struct{}

// NewTemplateEnrichmentGenerator creates a new TemplateEnrichmentGenerator.
func NewTemplateEnrichmentGenerator() *TemplateEnrichmentGenerator {
	return &TemplateEnrichmentGenerator{}
}

// GenerateEnrichment produces the family background, interests, and goals
// narrative for the student.
func (g *TemplateEnrichmentGenerator) GenerateEnrichment(_ context.Context, student *domain.Student) (*usecase.Enrichment, error) {
	return &usecase.Enrichment{
		FamilyBackground: fmt.Sprintf("%s grew up in a close-knit family that strongly values education.", student.FullName),
		Interests:        fmt.Sprintf("Outside of %s coursework, enjoys reading, team sports, and volunteering.", student.Course),
		Goals:            fmt.Sprintf("Aims to complete the %s program with distinction and pursue a career in the field.", student.Course),
	}, nil
}

// RefPhotoGenerator produces a deterministic storage reference for the
// student's generated photo.
type RefPhotoGenerator struct{}

// NewRefPhotoGenerator creates a new RefPhotoGenerator.
func NewRefPhotoGenerator() *RefPhotoGenerator {
	return &RefPhotoGenerator{}
}

// GeneratePhoto returns the storage reference the rendered photo is written to.
func (g *RefPhotoGenerator) GeneratePhoto(_ context.Context, student *domain.Student) (string, error) {
	return fmt.Sprintf("photos/%d/%s.png", student.ApplicationID, student.ID), nil
}
