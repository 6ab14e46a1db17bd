package pamedit

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// buildCLI builds the pamedit binary once per test and returns its path.
func buildCLI(t *testing.T) string {
	t.Helper()
	cmdPath := filepath.Join(t.TempDir(), "pamedit-test")
	buildCmd := exec.Command("go", "build", "-o", cmdPath, "./cmd/pamedit")
	if out, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build CLI: %v\n%s", err, out)
	}
	return cmdPath
}

// cliEnv points both directories at temp dirs so the binary never touches
// /etc/pam.d regardless of the effective UID running the tests.
func cliEnv(t *testing.T, pamDir, sandboxDir string) []string {
	t.Helper()
	return append(os.Environ(),
		"PAMEDIT_CONFIG="+filepath.Join(t.TempDir(), "no-config.yaml"),
		"PAMEDIT_PAM_DIR="+pamDir,
		"PAMEDIT_SANDBOX_DIR="+sandboxDir,
	)
}

// activeDir mirrors the resolver: root gets the pam dir, others the sandbox.
func activeDir(pamDir, sandboxDir string) string {
	if os.Geteuid() == 0 {
		return pamDir
	}
	return sandboxDir
}

func TestCLI_ListShowAddRemove(t *testing.T) {
	cmdPath := buildCLI(t)

	pamDir := t.TempDir()
	sandboxDir := t.TempDir()
	dir := activeDir(pamDir, sandboxDir)

	content := "auth required pam_unix.so nullok\naccount required pam_unix.so\n"
	if err := os.WriteFile(filepath.Join(dir, "sshd"), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to seed service file: %v", err)
	}

	env := cliEnv(t, pamDir, sandboxDir)

	runCLI := func(args ...string) (string, error) {
		cmd := exec.Command(cmdPath, args...)
		cmd.Env = env
		out, err := cmd.CombinedOutput()
		return string(out), err
	}

	out, err := runCLI("--action", "list")
	if err != nil {
		t.Fatalf("list failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "sshd") {
		t.Errorf("list output missing sshd: %s", out)
	}

	out, err = runCLI("--action", "show", "--service", "sshd")
	if err != nil {
		t.Fatalf("show failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "auth required pam_unix.so nullok") {
		t.Errorf("show output missing rule: %s", out)
	}

	out, err = runCLI("--action", "add", "--service", "sshd",
		"--type", "session", "--control", "optional",
		"--module", "pam_motd.so", "--args", "motd=/run/motd.dynamic")
	if err != nil {
		t.Fatalf("add failed: %v\n%s", err, out)
	}

	updated, err := os.ReadFile(filepath.Join(dir, "sshd"))
	if err != nil {
		t.Fatalf("Failed to read service file: %v", err)
	}
	if !strings.HasSuffix(string(updated), "session optional pam_motd.so motd=/run/motd.dynamic\n") {
		t.Errorf("add did not append expected line: %q", string(updated))
	}

	out, err = runCLI("--action", "remove", "--service", "sshd", "--module", "pam_unix.so")
	if err != nil {
		t.Fatalf("remove failed: %v\n%s", err, out)
	}

	backup, err := os.ReadFile(filepath.Join(dir, "sshd"+DefaultBackupSuffix))
	if err != nil {
		t.Fatalf("Backup missing after remove: %v", err)
	}
	if !strings.Contains(string(backup), "auth required pam_unix.so nullok") {
		t.Errorf("Backup missing pre-mutation content: %q", string(backup))
	}
}

func TestCLI_Validation(t *testing.T) {
	cmdPath := buildCLI(t)
	env := cliEnv(t, t.TempDir(), t.TempDir())

	tests := []struct {
		name string
		args []string
	}{
		{name: "no action", args: nil},
		{name: "unknown action", args: []string{"--action", "explode"}},
		{name: "show without service", args: []string{"--action", "show"}},
		{name: "add missing fields", args: []string{"--action", "add", "--service", "sshd"}},
		{name: "add unknown type", args: []string{"--action", "add", "--service", "sshd", "--type", "bogus", "--control", "required", "--module", "pam_x.so"}},
		{name: "add invalid control", args: []string{"--action", "add", "--service", "sshd", "--type", "auth", "--control", "maybe", "--module", "pam_x.so"}},
		{name: "remove without module", args: []string{"--action", "remove", "--service", "sshd"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := exec.Command(cmdPath, tt.args...)
			cmd.Env = env
			out, err := cmd.CombinedOutput()
			if err == nil {
				t.Fatalf("Expected failure, got success. Output: %s", out)
			}
			exitErr, ok := err.(*exec.ExitError)
			if !ok {
				t.Fatalf("Expected exit error, got %v", err)
			}
			if exitErr.ExitCode() != 2 {
				t.Errorf("Expected exit code 2, got %d. Output: %s", exitErr.ExitCode(), out)
			}
		})
	}
}

func TestCLI_RemoveNoMatch(t *testing.T) {
	cmdPath := buildCLI(t)

	pamDir := t.TempDir()
	sandboxDir := t.TempDir()
	dir := activeDir(pamDir, sandboxDir)

	original := "auth required pam_unix.so\n"
	if err := os.WriteFile(filepath.Join(dir, "login"), []byte(original), 0o644); err != nil {
		t.Fatalf("Failed to seed service file: %v", err)
	}

	cmd := exec.Command(cmdPath, "--action", "remove", "--service", "login", "--module", "pam_krb5.so")
	cmd.Env = cliEnv(t, pamDir, sandboxDir)
	out, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatalf("Expected failure for zero matches. Output: %s", out)
	}

	// Nothing matched, so nothing may have been written.
	content, readErr := os.ReadFile(filepath.Join(dir, "login"))
	if readErr != nil {
		t.Fatalf("Failed to read service file: %v", readErr)
	}
	if string(content) != original {
		t.Errorf("File changed on no-match remove: %q", string(content))
	}
}

func TestCLI_MissingService(t *testing.T) {
	cmdPath := buildCLI(t)

	cmd := exec.Command(cmdPath, "--action", "show", "--service", "nonexistent")
	cmd.Env = cliEnv(t, t.TempDir(), t.TempDir())
	out, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatalf("Expected failure for missing service. Output: %s", out)
	}
	if !strings.Contains(string(out), "not found") {
		t.Errorf("Expected not-found message, got: %s", out)
	}
}

func TestCLI_BackupSuffixFromEnv(t *testing.T) {
	cmdPath := buildCLI(t)

	pamDir := t.TempDir()
	sandboxDir := t.TempDir()
	dir := activeDir(pamDir, sandboxDir)

	original := "auth required pam_unix.so\n"
	if err := os.WriteFile(filepath.Join(dir, "login"), []byte(original), 0o644); err != nil {
		t.Fatalf("Failed to seed service file: %v", err)
	}

	cmd := exec.Command(cmdPath, "--action", "remove", "--service", "login", "--module", "pam_unix.so")
	cmd.Env = append(cliEnv(t, pamDir, sandboxDir), "PAMEDIT_BACKUP_SUFFIX=.bak")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("remove failed: %v\n%s", err, out)
	}

	backup, err := os.ReadFile(filepath.Join(dir, "login.bak"))
	if err != nil {
		t.Fatalf("Backup missing at configured suffix: %v", err)
	}
	if string(backup) != original {
		t.Errorf("Backup: expected %q, got %q", original, string(backup))
	}
	if _, err := os.Stat(filepath.Join(dir, "login"+DefaultBackupSuffix)); err == nil {
		t.Error("Backup landed at the default suffix despite configuration")
	}
}

func TestCLI_AddPositionStart(t *testing.T) {
	cmdPath := buildCLI(t)

	pamDir := t.TempDir()
	sandboxDir := t.TempDir()
	dir := activeDir(pamDir, sandboxDir)

	if err := os.WriteFile(filepath.Join(dir, "su"), []byte("auth required pam_unix.so\n"), 0o644); err != nil {
		t.Fatalf("Failed to seed service file: %v", err)
	}

	cmd := exec.Command(cmdPath, "--action", "add", "--service", "su",
		"--type", "auth", "--control", "sufficient", "--module", "pam_rootok.so",
		"--position", "start")
	cmd.Env = cliEnv(t, pamDir, sandboxDir)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("add failed: %v\n%s", err, out)
	}

	content, err := os.ReadFile(filepath.Join(dir, "su"))
	if err != nil {
		t.Fatalf("Failed to read service file: %v", err)
	}
	expected := "auth sufficient pam_rootok.so\nauth required pam_unix.so\n"
	if string(content) != expected {
		t.Errorf("Expected %q, got %q", expected, string(content))
	}
}
