package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/yukinko0825/recipe-site/pkg/auth"
	"github.com/yukinko0825/recipe-site/pkg/images"
	"github.com/yukinko0825/recipe-site/pkg/recipe"
)

// draftFile is the YAML accepted by "save". Image files are resolved
// relative to the draft file.
type draftFile struct {
	recipe.Draft `yaml:",inline"`
	ImageFile    string          `yaml:"image_file"`
	Steps        []draftFileStep `yaml:"steps"`
}

type draftFileStep struct {
	Description string `yaml:"description"`
	ImageURL    string `yaml:"image_url"`
	ImageFile   string `yaml:"image_file"`
}

func runListCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("list", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		query      string
		jsonOutput bool
	)
	cmd.StringVar(&query, "q", "", "Only recipes whose name contains this text (case-sensitive)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	return withApp(stderr, func(ctx context.Context, a *app) int {
		recipes, err := a.repo.Search(ctx, query)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if jsonOutput {
			return printJSON(stdout, map[string]any{"recipes": recipes})
		}

		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tKEYWORDS")
		for _, r := range recipes {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.ID, r.Name, r.Category, r.KeywordText())
		}
		_ = tw.Flush()
		return 0
	})
}

func runShowCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("show", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		id         int64
		jsonOutput bool
	)
	cmd.Int64Var(&id, "id", 0, "Recipe ID (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if id <= 0 {
		fmt.Fprintln(stderr, "Error: --id is required")
		cmd.Usage()
		return 2
	}

	return withApp(stderr, func(ctx context.Context, a *app) int {
		rec, steps, err := a.repo.Detail(ctx, id)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if jsonOutput {
			return printJSON(stdout, map[string]any{"recipe": rec, "steps": steps})
		}

		fmt.Fprintf(stdout, "%s%s%s  (#%d, %s)\n", ColorBold, rec.Name, ColorReset, rec.ID, rec.Category)
		fmt.Fprintf(stdout, "  Keywords:  %s\n", recipe.OrDash(rec.KeywordText()))
		fmt.Fprintf(stdout, "  Soak time: %s\n", recipe.OrDash(rec.SoakTime))
		fmt.Fprintf(stdout, "  Cook time: %s\n", recipe.OrDash(rec.CookTime))
		fmt.Fprintf(stdout, "  Image:     %s\n", recipe.DisplayImage(*rec, a.cfg.Images.Placeholder))
		if rec.Description != "" {
			fmt.Fprintf(stdout, "\n%s\n", rec.Description)
		}
		fmt.Fprintln(stdout, "")
		for _, s := range steps {
			fmt.Fprintf(stdout, "  %d. %s\n", s.StepNumber, s.Description)
			if img := recipe.SafeImage(s.ImageURL); img != nil {
				fmt.Fprintf(stdout, "     %s%s%s\n", ColorGray, *img, ColorReset)
			}
		}
		return 0
	})
}

func runSaveCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("save", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		file       string
		id         int64
		jsonOutput bool
	)
	cmd.StringVar(&file, "file", "", "Path to the recipe draft YAML (REQUIRED)")
	cmd.Int64Var(&id, "id", 0, "Recipe ID to update; omit to create")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if file == "" {
		fmt.Fprintln(stderr, "Error: --file is required")
		cmd.Usage()
		return 2
	}

	df, err := readDraftFile(file)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	return withApp(stderr, func(ctx context.Context, a *app) int {
		draft, editor, err := df.build(filepath.Dir(file))
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		defer editor.Close()

		var editingID *int64
		if id > 0 {
			editingID = &id
		}
		res, err := a.repo.Save(ctx, draft, editor.Drafts(), editingID)
		if err != nil {
			var partial *recipe.PartialSaveError
			if errors.As(err, &partial) {
				fmt.Fprintf(stderr, "%sWarning:%s recipe #%d was saved without its steps; run save again with --id %d\n",
					ColorYellow, ColorReset, partial.RecipeID, partial.RecipeID)
			}
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}

		if jsonOutput {
			return printJSON(stdout, res)
		}
		verb := "Updated"
		if res.Created {
			verb = "Created"
		}
		fmt.Fprintf(stdout, "✅ %s recipe #%d %s (%d steps)\n", verb, res.Recipe.ID, res.Recipe.Name, len(res.Steps))
		return 0
	})
}

func runDeleteCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("delete", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		id  int64
		yes bool
	)
	cmd.Int64Var(&id, "id", 0, "Recipe ID (REQUIRED)")
	cmd.BoolVar(&yes, "yes", false, "Confirm the deletion; it cannot be undone")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if id <= 0 {
		fmt.Fprintln(stderr, "Error: --id is required")
		cmd.Usage()
		return 2
	}

	return withApp(stderr, func(ctx context.Context, a *app) int {
		if err := a.repo.Delete(ctx, id, yes); err != nil {
			if errors.Is(err, recipe.ErrNotConfirmed) {
				fmt.Fprintf(stderr, "Deleting recipe #%d cannot be undone. Re-run with --yes to confirm.\n", id)
				return 1
			}
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "🗑  Deleted recipe #%d\n", id)
		return 0
	})
}

func runMigrateCmd(stdout, stderr io.Writer) int {
	return withApp(stderr, func(_ context.Context, a *app) int {
		target := "postgres"
		if a.cfg.LiteMode() {
			target = a.cfg.SQLitePath()
		}
		fmt.Fprintf(stdout, "✅ Schema up to date (%s)\n", target)
		return 0
	})
}

func runHashPassphraseCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("hash-passphrase", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var passphrase string
	cmd.StringVar(&passphrase, "passphrase", "", "Passphrase to hash (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if passphrase == "" {
		fmt.Fprintln(stderr, "Error: --passphrase is required")
		cmd.Usage()
		return 2
	}

	hash, err := auth.HashPassphrase(passphrase)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, hash)
	return 0
}

// withApp runs fn as the local operator against a freshly wired app.
func withApp(stderr io.Writer, fn func(ctx context.Context, a *app) int) int {
	ctx := context.Background()
	a, err := newApp(ctx, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%sError:%s %v\n", ColorRed, ColorReset, err)
		return 1
	}
	defer a.Close()
	return fn(operatorContext(ctx), a)
}

func readDraftFile(path string) (*draftFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read draft: %w", err)
	}
	var df draftFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("parse draft %s: %w", path, err)
	}
	if df.Category == "" {
		df.Category = recipe.DefaultCategory
	}
	return &df, nil
}

// build turns the file into a draft and a populated step editor, loading
// any referenced image files as attachments.
func (df *draftFile) build(baseDir string) (recipe.Draft, *recipe.Editor, error) {
	draft := df.Draft
	if df.ImageFile != "" {
		att, err := loadAttachment(baseDir, df.ImageFile)
		if err != nil {
			return draft, nil, err
		}
		draft.Image = att
	}

	rows := make([]recipe.Step, len(df.Steps))
	for i, s := range df.Steps {
		url := s.ImageURL
		rows[i] = recipe.Step{StepNumber: i + 1, Description: s.Description, ImageURL: &url}
	}
	editor := recipe.NewEditor(nil)
	editor.Load(rows)

	for i, s := range df.Steps {
		if s.ImageFile == "" {
			continue
		}
		att, err := loadAttachment(baseDir, s.ImageFile)
		if err == nil {
			err = editor.Attach(i, att)
		}
		if err != nil {
			editor.Close()
			return draft, nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return draft, editor, nil
}

func loadAttachment(baseDir, name string) (*images.Attachment, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	att := images.NewAttachment(filepath.Base(path), "", data)
	if err := att.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return att, nil
}

func printJSON(w io.Writer, v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(w, string(data))
	return 0
}
