// Command pamedit edits PAM service configuration files: listing
// services, showing a service's rule stack, appending rules, and removing
// rules by module. Mutating actions back up the target file first.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"pamedit"
)

func main() {
	// A local .env can point PAMEDIT_* at a scratch directory.
	_ = godotenv.Load()

	var (
		action     = flag.String("action", "", "action to perform: list, show, add, remove, backup, restore")
		service    = flag.String("service", "", "PAM service name")
		ruleType   = flag.String("type", "", "rule type (auth, account, password, session)")
		control    = flag.String("control", "", "control flag (required, sufficient, etc.)")
		module     = flag.String("module", "", "PAM module path or name")
		moduleArgs = flag.String("args", "", "module arguments, space separated")
		position   = flag.String("position", "end", "where add places the new rule: start or end")
		configPath = flag.String("config", "", "path to pamedit config file")
	)
	flag.Parse()

	cfg, err := pamedit.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	store := pamedit.NewStore()
	store.BackupSuffix = cfg.BackupSuffix

	app := &app{
		store:    store,
		resolver: pamedit.NewResolver(cfg.PamDir, cfg.SandboxDir),
	}

	err = app.run(*action, opts{
		service:  *service,
		ruleType: *ruleType,
		control:  *control,
		module:   *module,
		args:     *moduleArgs,
		position: *position,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var verr *pamedit.ValidationError
		if errors.As(err, &verr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type opts struct {
	service  string
	ruleType string
	control  string
	module   string
	args     string
	position string
}

type app struct {
	store    *pamedit.Store
	resolver *pamedit.Resolver
}

func (a *app) run(action string, o opts) error {
	dir := a.resolver.Resolve()

	switch action {
	case "list":
		return a.list(dir)
	case "show":
		return a.show(dir, o)
	case "add":
		return a.add(dir, o)
	case "remove":
		return a.remove(dir, o)
	case "backup":
		return a.backup(dir)
	case "restore":
		return a.restore(dir)
	case "":
		return &pamedit.ValidationError{Field: "action", Reason: "required"}
	default:
		return &pamedit.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", action)}
	}
}

func (a *app) list(dir string) error {
	services, err := a.store.ListServices(dir)
	if err != nil {
		return err
	}

	fmt.Printf("Available PAM services in %s:\n", dir)
	for _, name := range services {
		fmt.Printf("  - %s\n", name)
	}
	return nil
}

func (a *app) show(dir string, o opts) error {
	if o.service == "" {
		return &pamedit.ValidationError{Field: "service", Reason: "required for show"}
	}

	f, err := a.store.Load(dir, o.service)
	if err != nil {
		return err
	}
	printWarnings(f)

	writer := pamedit.NewWriter()
	fmt.Printf("Rules for %s:\n", o.service)
	for _, rule := range f.Rules() {
		fmt.Printf("  %s\n", writer.FormatRule(rule))
	}
	return nil
}

func (a *app) add(dir string, o opts) error {
	rule, err := buildRule(o)
	if err != nil {
		return err
	}
	if err := a.resolver.CheckWritable(dir); err != nil {
		return err
	}

	f, err := a.store.Load(dir, o.service)
	if err != nil {
		return err
	}
	printWarnings(f)

	editor := pamedit.NewEditor(f)
	if o.position == "start" {
		editor.Prepend(rule)
	} else {
		editor.Append(rule)
	}

	if err := a.store.Save(f); err != nil {
		return err
	}
	fmt.Printf("Rule added to %s\n", o.service)
	return nil
}

func (a *app) remove(dir string, o opts) error {
	if o.service == "" {
		return &pamedit.ValidationError{Field: "service", Reason: "required for remove"}
	}
	if o.module == "" {
		return &pamedit.ValidationError{Field: "module", Reason: "required for remove"}
	}
	if err := a.resolver.CheckWritable(dir); err != nil {
		return err
	}

	f, err := a.store.Load(dir, o.service)
	if err != nil {
		return err
	}
	printWarnings(f)

	editor := pamedit.NewEditor(f)
	removed := editor.RemoveModule(o.module)
	if removed == 0 {
		return fmt.Errorf("module %s in %s: %w", o.module, o.service, pamedit.ErrNoMatch)
	}

	if err := a.store.Save(f); err != nil {
		return err
	}
	fmt.Printf("Removed %d rule(s) with module %s from %s\n", removed, o.module, o.service)
	return nil
}

func (a *app) backup(dir string) error {
	if err := a.resolver.CheckWritable(dir); err != nil {
		return err
	}
	backupDir, err := a.store.BackupTree(dir)
	if err != nil {
		return err
	}
	fmt.Printf("Backup created at %s\n", backupDir)
	return nil
}

func (a *app) restore(dir string) error {
	if err := a.resolver.CheckWritable(dir); err != nil {
		return err
	}
	if err := a.store.RestoreTree(dir); err != nil {
		return err
	}
	fmt.Printf("Configuration restored from %s%s\n", dir, a.store.BackupSuffix)
	return nil
}

func buildRule(o opts) (pamedit.Rule, error) {
	var zero pamedit.Rule
	if o.service == "" {
		return zero, &pamedit.ValidationError{Field: "service", Reason: "required for add"}
	}
	if o.ruleType == "" {
		return zero, &pamedit.ValidationError{Field: "type", Reason: "required for add"}
	}
	if !pamedit.IsValidModuleType(o.ruleType) {
		return zero, &pamedit.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown module type %q", o.ruleType)}
	}
	if o.control == "" {
		return zero, &pamedit.ValidationError{Field: "control", Reason: "required for add"}
	}
	if !pamedit.IsValidControl(o.control) {
		return zero, &pamedit.ValidationError{Field: "control", Reason: fmt.Sprintf("invalid control %q", o.control)}
	}
	if o.module == "" {
		return zero, &pamedit.ValidationError{Field: "module", Reason: "required for add"}
	}
	if o.position != "start" && o.position != "end" {
		return zero, &pamedit.ValidationError{Field: "position", Reason: fmt.Sprintf("must be start or end, got %q", o.position)}
	}

	return pamedit.Rule{
		Type:    pamedit.ModuleType(strings.ToLower(o.ruleType)),
		Control: o.control,
		Module:  o.module,
		Args:    strings.Fields(o.args),
	}, nil
}

func printWarnings(f *pamedit.ServiceFile) {
	for _, w := range f.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s: %s\n", f.Name, w)
	}
}
