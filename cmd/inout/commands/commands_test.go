package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/inout/am"
	"github.com/teranos/inout/errors"
	"github.com/teranos/inout/policy"
	"github.com/teranos/inout/record"
	"github.com/teranos/inout/relational"
	"github.com/teranos/inout/resolve"
	"github.com/teranos/inout/write"
	inouttest "github.com/teranos/inout/internal/testing"
)

type envelope struct {
	StatusCode int                    `json:"status_code"`
	Msg        string                 `json:"msg"`
	Data       map[string]interface{} `json:"data"`
}

func decodeEnvelope(t *testing.T, b []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(b, &env), string(b))
	return env
}

// setupProject isolates the config cascade: empty HOME, no system file and a
// project am.toml pointing sqlite at a temp file.
func setupProject(t *testing.T) string {
	t.Helper()
	am.Reset()
	t.Cleanup(am.Reset)

	dir := t.TempDir()
	t.Setenv("HOME", filepath.Join(dir, "home"))
	t.Chdir(dir)

	old := am.SystemConfigPath
	am.SystemConfigPath = filepath.Join(dir, "missing", "am.toml")
	t.Cleanup(func() { am.SystemConfigPath = old })

	conf := "[sqlite]\npath = " + `"` + filepath.Join(dir, "inout.db") + `"` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "am.toml"), []byte(conf), 0o644))
	return dir
}

func people() []record.Record {
	return []record.Record{
		{"name": "Ada", "age": 36},
		{"name": "Grace", "age": 45},
	}
}

func TestExecuteWrite(t *testing.T) {
	db := relational.New(inouttest.CreateTestDB(t), relational.SQLite, nil)
	target := db.Table("", "people")
	ctx := context.Background()

	var out bytes.Buffer
	err := executeWrite(ctx, &out, inouttest.TestLogger(t), target, write.Request{
		Records:         people(),
		AssetPolicy:     policy.Append,
		DataPolicy:      policy.Append,
		CreateIfMissing: true,
	})
	require.NoError(t, err)
	env := decodeEnvelope(t, out.Bytes())
	assert.Equal(t, 201, env.StatusCode)

	out.Reset()
	err = executeWrite(ctx, &out, inouttest.TestLogger(t), target, write.Request{
		Records:     people(),
		AssetPolicy: policy.Append,
		DataPolicy:  policy.Fail,
		ConflictKey: resolve.Key{"name"},
	})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 409, statusErr.StatusCode)

	env = decodeEnvelope(t, out.Bytes())
	assert.Equal(t, 409, env.StatusCode)
	assert.EqualValues(t, 2, env.Data["num_conflicts"])
}

func TestExecuteWriteRendersTerminalErrors(t *testing.T) {
	db := relational.New(inouttest.CreateTestDB(t), relational.SQLite, nil)

	var out bytes.Buffer
	err := executeWrite(context.Background(), &out, inouttest.TestLogger(t), db.Table("", "people"), write.Request{
		Records:     people(),
		AssetPolicy: policy.Append,
		DataPolicy:  policy.Replace,
	})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))

	env := decodeEnvelope(t, out.Bytes())
	assert.Equal(t, 501, env.StatusCode)
	assert.Nil(t, env.Data)
}

func TestBuildRequest(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "people.json")
	require.NoError(t, os.WriteFile(input, []byte(`[{"name": "Ada"}, {"name": "Grace"}]`), 0o644))

	t.Cleanup(func() {
		writeInput, writeOnAssetConflict, writeOnDataConflict = "", "", ""
		writeConflictKey = nil
	})
	writeInput = input
	writeConflictKey = []string{"name"}

	cmd := &cobra.Command{}
	cmd.Flags().Bool("create-if-missing", false, "")
	cfg := &am.Config{Write: am.WriteConfig{OnAssetConflict: "fail", OnDataConflict: "ignore", CreateIfMissing: true}}

	req, err := buildRequest(cmd, cfg)
	require.NoError(t, err)
	assert.Len(t, req.Records, 2)
	assert.Equal(t, policy.Fail, req.AssetPolicy)
	assert.Equal(t, policy.Ignore, req.DataPolicy)
	assert.Equal(t, resolve.Key{"name"}, req.ConflictKey)
	assert.True(t, req.CreateIfMissing, "config default applies when the flag is not given")

	require.NoError(t, cmd.Flags().Set("create-if-missing", "false"))
	writeOnDataConflict = "append"
	req, err = buildRequest(cmd, cfg)
	require.NoError(t, err)
	assert.Equal(t, policy.Append, req.DataPolicy)
	assert.False(t, req.CreateIfMissing)

	writeOnAssetConflict = "overwrite"
	_, err = buildRequest(cmd, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--on-asset-conflict")
}

func TestWriteThenQuerySQLite(t *testing.T) {
	dir := setupProject(t)
	input := filepath.Join(dir, "people.csv")
	require.NoError(t, os.WriteFile(input, []byte("name,age\nAda,36\nGrace,45\n"), 0o644))

	var out bytes.Buffer
	WriteCmd.SetOut(&out)
	WriteCmd.SetErr(io.Discard)
	WriteCmd.SetArgs([]string{"sqlite", "--table", "people", "--input", input, "--create-if-missing"})
	require.NoError(t, WriteCmd.Execute())

	env := decodeEnvelope(t, out.Bytes())
	assert.Equal(t, 201, env.StatusCode)
	assert.Contains(t, env.Msg, "Successfully wrote 2 rows")

	out.Reset()
	QueryCmd.SetOut(&out)
	QueryCmd.SetErr(io.Discard)
	QueryCmd.SetArgs([]string{"sqlite", "SELECT name, age FROM people ORDER BY name", "--format", "json"})
	require.NoError(t, QueryCmd.Execute())

	var table record.Table
	require.NoError(t, json.Unmarshal(out.Bytes(), &table))
	assert.Equal(t, []string{"name", "age"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Ada", table.Rows[0]["name"])
	assert.EqualValues(t, 45, table.Rows[1]["age"])
}

func TestAmGet(t *testing.T) {
	dir := setupProject(t)

	var out bytes.Buffer
	AmCmd.SetOut(&out)
	AmCmd.SetArgs([]string{"get", "sqlite.path"})
	require.NoError(t, AmCmd.Execute())
	assert.Equal(t, filepath.Join(dir, "inout.db")+"\n", out.String())
}

func TestParseTime(t *testing.T) {
	ts, err := parseTime("2024-03-01T09:30:00+01:00")
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)))

	day, err := parseTime("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), day)

	zero, err := parseTime("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = parseTime("yesterday")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestNewCalendarRequest(t *testing.T) {
	t.Cleanup(func() { calendarDescription, calendarTimeZone = "", "" })
	calendarTimeZone = "Europe/Amsterdam"

	req := newCalendarRequest("Offsites", policy.Fail)
	require.Len(t, req.Records, 1)
	assert.Equal(t, record.Record{"summary": "Offsites", "timeZone": "Europe/Amsterdam"}, req.Records[0])
	assert.Equal(t, resolve.Key{"summary"}, req.ConflictKey)
	assert.Equal(t, policy.Append, req.AssetPolicy)
	assert.Equal(t, policy.Fail, req.DataPolicy)
}

func TestVersionJSON(t *testing.T) {
	var out bytes.Buffer
	VersionCmd.SetOut(&out)
	VersionCmd.SetArgs([]string{"--json"})
	require.NoError(t, VersionCmd.Execute())

	var info map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.NotEmpty(t, info["go_version"])
	assert.NotEmpty(t, info["version"])
}
