package i18n

import (
	"context"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "GradePaper" {
		t.Errorf("T(AppTitle) = %q, want 'GradePaper'", got)
	}

	got = T(ctx, "SummaryHeader")
	if got != "Grading Summary" {
		t.Errorf("T(SummaryHeader) = %q, want 'Grading Summary'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "SummaryHeader")
	if got != "Итоги проверки" {
		t.Errorf("T(SummaryHeader) = %q, want 'Итоги проверки'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "QuestionsFound", 1)
	if got1 != "1 question found." {
		t.Errorf("Tp(QuestionsFound, 1) = %q, want '1 question found.'", got1)
	}

	got5 := Tp(ctx, "QuestionsFound", 5)
	if got5 != "5 questions found." {
		t.Errorf("Tp(QuestionsFound, 5) = %q, want '5 questions found.'", got5)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "GradeLine", map[string]any{"Grade": "A+"})
	if got != "Grade: A+" {
		t.Errorf("Td(GradeLine) = %q, want 'Grade: A+'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}
