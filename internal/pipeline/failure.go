package pipeline

import (
	"fmt"
	"strings"
)

// Kind names a failure category as reported to operators.
type Kind string

const (
	KindInvalidRequest     Kind = "InvalidRequest"
	KindExtractionFailure  Kind = "ExtractionFailure"
	KindAnalysisFailure    Kind = "AnalysisFailure"
	KindPersistenceFailure Kind = "PersistenceFailure"
)

// Failure ends one request. Stage is the stage that could not be reached.
type Failure struct {
	Stage Stage
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", kindOf(f.Stage), f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Kind maps the failed stage to its category.
func (f *Failure) Kind() Kind { return kindOf(f.Stage) }

func kindOf(s Stage) Kind {
	switch s {
	case StageParsed:
		return KindInvalidRequest
	case StageExtracted:
		return KindExtractionFailure
	case StageAnalyzed:
		return KindAnalysisFailure
	default:
		return KindPersistenceFailure
	}
}

// failureComment is posted on a request that could not be turned into a
// fiche.
func failureComment(f *Failure, model string) string {
	switch f.Stage {
	case StageParsed:
		return "❌ Erreur: L'issue ne contient pas d'URL valide dans la description. " +
			"Indiquez un lien commençant par http:// ou https://."
	case StageExtracted:
		return "⚠️ Erreur: Impossible de récupérer le contenu de l'URL. " +
			"L'URL est peut-être invalide ou inaccessible."
	case StageAnalyzed:
		if model == "" {
			return "⚠️ Erreur: Impossible d'analyser le contenu."
		}
		return fmt.Sprintf("⚠️ Erreur: Impossible d'analyser le contenu avec %s.", model)
	default:
		return "❌ Erreur: Impossible d'enregistrer la fiche."
	}
}

func successComment(title, category string, tags []string) string {
	var sb strings.Builder
	sb.WriteString("✅ Fiche créée avec succès!\n\n")
	fmt.Fprintf(&sb, "**Titre:** %s\n\n", title)
	fmt.Fprintf(&sb, "**Thématique:** %s\n\n", category)
	fmt.Fprintf(&sb, "**Tags:** %s\n\n", strings.Join(tags, ", "))
	sb.WriteString("*Fiche générée et publiée automatiquement.*")
	return sb.String()
}
