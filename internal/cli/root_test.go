package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-field-sync/internal/service"
	"github.com/MKhiriev/go-field-sync/models"
)

// unreachableRemote refuses connections, so every command runs offline.
const unreachableRemote = "http://127.0.0.1:1"

func newTestRoot() *cobra.Command {
	return NewRootCommand(models.NewAppBuildInfo("0.9.1", "2026-10-01", "abc1234"))
}

// device runs commands against one local database.
type device struct {
	t   *testing.T
	dir string
	db  string
}

func newDevice(t *testing.T, name string) *device {
	t.Helper()
	dir := t.TempDir()
	return &device{t: t, dir: dir, db: filepath.Join(dir, name+".db")}
}

func (d *device) run(stdin string, args ...string) (string, error) {
	d.t.Helper()

	base := []string{
		"--db", d.db,
		"--remote", unreachableRemote,
		"--log-file", filepath.Join(d.dir, "fieldsync.log"),
		"--transfer-dir", d.dir,
		"--agent-id", "agent-7",
		"--format", "json",
	}

	var out bytes.Buffer
	cmd := newTestRoot()
	cmd.SetArgs(append(base, args...))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))

	err := cmd.Execute()
	return out.String(), err
}

func decodeOut[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

// ── Command tree ──

func TestRootCommand(t *testing.T) {
	cmd := newTestRoot()
	require.NotNil(t, cmd)
	assert.Equal(t, "fieldsync", cmd.Use)
	assert.Contains(t, cmd.Long, "offline")
}

func TestCommandPresence(t *testing.T) {
	cmd := newTestRoot()
	commands := [][]string{
		{"serve"},
		{"sync"},
		{"version"},
		{"project", "add"},
		{"project", "register"},
		{"project", "list"},
		{"submission", "create"},
		{"submission", "update"},
		{"submission", "seal"},
		{"submission", "delete"},
		{"submission", "list"},
		{"submission", "show"},
		{"submission", "review"},
		{"submission", "resolve"},
		{"queue", "list"},
		{"queue", "drain"},
		{"transfer", "export"},
		{"transfer", "import"},
		{"transfer", "scan"},
		{"transfer", "confirm"},
	}

	for _, path := range commands {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := newTestRoot()

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	projectFlag := cmd.PersistentFlags().Lookup("project")
	require.NotNil(t, projectFlag)
	assert.Equal(t, "p", projectFlag.Shorthand)

	for _, name := range []string{"config", "db", "remote", "token", "address", "log-file", "transfer-dir"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestTransferExportFlags(t *testing.T) {
	cmd := newTestRoot()
	exportCmd, _, err := cmd.Find([]string{"transfer", "export"})
	require.NoError(t, err)

	mediumFlag := exportCmd.Flags().Lookup("medium")
	require.NotNil(t, mediumFlag)
	assert.Equal(t, "m", mediumFlag.Shorthand)
	assert.Equal(t, "file", mediumFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	cmd := newTestRoot()
	cmd.SetArgs([]string{"--format", "yaml", "version"})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.Execute()

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newTestRoot()
	cmd.SetArgs([]string{"version"})
	cmd.SetOut(&out)

	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Build version:")
	assert.Contains(t, out.String(), "0.9.1")
	assert.Contains(t, out.String(), "abc1234")
}

// ── Exit codes ──

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "plain error", err: errors.New("boom"), want: ExitFailure},
		{name: "command error", err: WrapExitError(ExitCommandError, "bad", nil), want: ExitCommandError},
		{
			name: "wrapped exit error",
			err:  errors.Join(errors.New("ctx"), WrapExitError(ExitFailure, "sync", models.ErrNetwork)),
			want: ExitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitErrorUnwrap(t *testing.T) {
	err := WrapExitError(ExitFailure, "sync p1", models.ErrNetwork)

	assert.ErrorIs(t, err, models.ErrNetwork)
	assert.Equal(t, "sync p1: "+models.ErrNetwork.Error(), err.Error())
}

// ── Field parsing ──

func TestParseFieldValue(t *testing.T) {
	tests := []struct {
		in   string
		kind models.ValueKind
		text string
	}{
		{in: "2.5", kind: models.KindNumber, text: "2.5"},
		{in: "true", kind: models.KindBool, text: "true"},
		{in: "null", kind: models.KindNull, text: "null"},
		{in: `"12"`, kind: models.KindString, text: "12"},
		{in: "maize", kind: models.KindString, text: "maize"},
		{in: "", kind: models.KindString, text: ""},
		{in: "[1,2]", kind: models.KindString, text: "[1,2]"},
		{in: `{"$blob":"AAE="}`, kind: models.KindString, text: `{"$blob":"AAE="}`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v := parseFieldValue(tt.in)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.text, v.String())
		})
	}
}

func TestDataOptions(t *testing.T) {
	t.Run("fields override data file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plot.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"crop":"wheat","plot":4}`), 0o600))
		d := dataOptions{file: path, fields: []string{"crop=maize", "irrigated=false"}}

		data, err := d.fieldMap(nil)

		require.NoError(t, err)
		require.Len(t, data, 3)
		assert.Equal(t, "crop", data[0].Name)
		assert.Equal(t, "maize", data[0].Value.String())
		assert.Equal(t, "irrigated", data[2].Name)
	})

	t.Run("stdin", func(t *testing.T) {
		d := dataOptions{file: "-"}

		data, err := d.fieldMap(strings.NewReader(`{"crop":"sorghum"}`))

		require.NoError(t, err)
		v, ok := data.Get("crop")
		require.True(t, ok)
		assert.Equal(t, "sorghum", v.String())
	})

	t.Run("malformed pair", func(t *testing.T) {
		d := dataOptions{fields: []string{"=3"}}

		_, err := d.fieldMap(nil)

		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("nothing given", func(t *testing.T) {
		_, err := (&dataOptions{}).fieldMap(nil)

		assert.ErrorIs(t, err, errNoData)
	})
}

func TestConfirmer(t *testing.T) {
	payload := models.TransferPayload{ProjectID: "p-2", ProjectName: "South", Count: 3}

	tests := []struct {
		name  string
		yes   bool
		input string
		want  bool
	}{
		{name: "flag", yes: true, want: true},
		{name: "answer y", input: "y\n", want: true},
		{name: "answer YES", input: " YES \n", want: true},
		{name: "answer n", input: "n\n", want: false},
		{name: "no answer", input: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prompt bytes.Buffer
			cmd := &cobra.Command{}
			cmd.SetIn(strings.NewReader(tt.input))
			cmd.SetErr(&prompt)

			got := confirmer(cmd, tt.yes)(payload)

			assert.Equal(t, tt.want, got)
			if !tt.yes {
				assert.Contains(t, prompt.String(), `"South"`)
			}
		})
	}
}

// ── End to end ──

func TestCollectSealAndHandOff(t *testing.T) {
	field := newDevice(t, "field")
	office := newDevice(t, "office")

	out, err := field.run("", "project", "add", "Survey North")
	require.NoError(t, err)
	project := decodeOut[models.Project](t, out)
	require.NotEmpty(t, project.ID)

	out, err = field.run("", "submission", "create", "-p", project.ID, "-f", "crop=maize", "-f", "hectares=2.5")
	require.NoError(t, err)
	sub := decodeOut[models.Submission](t, out)
	assert.Equal(t, models.StatusDraft, sub.Status)
	assert.Equal(t, "agent-7", sub.Metadata[models.MetaAgentID])
	hectares, ok := sub.Data.Get("hectares")
	require.True(t, ok)
	assert.Equal(t, models.KindNumber, hectares.Kind())

	out, err = field.run("", "submission", "seal", sub.ID)
	require.NoError(t, err)
	sealed := decodeOut[models.Submission](t, out)
	assert.True(t, sealed.Status.Sealed(), sealed.Status)

	out, err = field.run("", "transfer", "export", "-p", project.ID)
	require.NoError(t, err)
	export := decodeOut[service.ExportResult](t, out)
	assert.Equal(t, 1, export.Count)
	require.FileExists(t, export.Path)

	// на втором устройстве проект создаётся из payload
	out, err = office.run("", "transfer", "import", export.Path)
	require.NoError(t, err)
	report := decodeOut[models.ImportReport](t, out)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, project.ID, report.ProjectID)

	out, err = office.run("", "submission", "list", "-p", project.ID)
	require.NoError(t, err)
	received := decodeOut[[]models.Submission](t, out)
	require.Len(t, received, 1)
	assert.Equal(t, sub.ID, received[0].ID)
	assert.Equal(t, models.StatusSynced, received[0].Status)

	out, err = field.run("", "transfer", "confirm", "-p", project.ID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"confirmed": 1}, decodeOut[map[string]int](t, out))
}

func TestSyncOfflineExitsWithFailure(t *testing.T) {
	d := newDevice(t, "field")
	out, err := d.run("", "project", "add", "Survey North")
	require.NoError(t, err)
	project := decodeOut[models.Project](t, out)

	out, err = d.run("", "sync", project.ID)

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	reports := decodeOut[[]models.SyncReport](t, out)
	require.Len(t, reports, 1)
	assert.NotEmpty(t, reports[0].Error)
}

func TestCommandsWithoutProject(t *testing.T) {
	d := newDevice(t, "field")

	_, err := d.run("", "submission", "list")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, errNoProject)
}

func TestShowUnknownSubmission(t *testing.T) {
	d := newDevice(t, "field")

	_, err := d.run("", "submission", "show", "missing")

	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
