package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammwyy/easel/api"
	"github.com/sammwyy/easel/core/eventbus"
	"github.com/sammwyy/easel/core/scenestore"
	"github.com/sammwyy/easel/plugins"
)

func writeConfig(t *testing.T, body string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "easel.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := make([]string, 0)
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"run", "plugins", "scenes", "send"}, names)

	flag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestPluginsCmd_JSON(t *testing.T) {
	path, _ := writeConfig(t, "[plugins.selection-beacon]\nenabled = false\n")

	out, err := execute(t, "--config", path, "plugins", "--json")
	require.NoError(t, err)

	var infos []plugins.Info
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 5)

	enabled := make(map[string]bool)
	for _, info := range infos {
		enabled[info.Meta.ID] = info.Enabled
	}
	assert.False(t, enabled["selection-beacon"])
	assert.True(t, enabled["flow-pipeline"])
}

func TestPluginsCmd_Table(t *testing.T) {
	out, err := execute(t, "plugins")
	require.NoError(t, err)
	assert.Contains(t, out, "CAPABILITIES")
	assert.Contains(t, out, "flow-pipeline")
	assert.Contains(t, out, "canvas-data-reader,flow-view,selection-beacon")
}

func TestScenesCmd(t *testing.T) {
	path, dir := writeConfig(t, "[core]\nscene_dir = \"saved\"\n")

	store, err := scenestore.Open(filepath.Join(dir, "saved"), api.NewLogger("scenestore"))
	require.NoError(t, err)
	scene, err := store.Save("board", []api.Element{{ID: "a"}}, api.AppState{})
	require.NoError(t, err)
	id := scene.ID.String()

	out, err := execute(t, "--config", path, "scenes", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "board")

	out, err = execute(t, "--config", path, "scenes", "list", "--json")
	require.NoError(t, err)
	var summaries []scenestore.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].Elements)

	out, err = execute(t, "--config", path, "scenes", "show", id)
	require.NoError(t, err)
	var shown scenestore.Scene
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "board", shown.Name)

	_, err = execute(t, "--config", path, "scenes", "delete", id)
	require.NoError(t, err)

	_, err = execute(t, "--config", path, "scenes", "show", id)
	assert.ErrorIs(t, err, scenestore.ErrNotFound)
}

func TestSendCmd(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "easel.sock")
	path, _ := writeConfig(t, fmt.Sprintf("[core]\nsocket_path = %q\n", socketPath))

	bus := eventbus.NewEventBus(socketPath, api.NewLogger("eventbus"), nil)
	got := make(chan api.Signal, 1)
	bus.SetIngest(func(s api.Signal) { got <- s })
	require.NoError(t, bus.Start())
	defer bus.Stop()

	out, err := execute(t, "--config", path, "send", "scene.save", `{"name":"board"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "sent scene.save")

	select {
	case s := <-got:
		assert.Equal(t, "scene.save", s.Type)
		assert.Equal(t, "cli", s.Source)
		assert.Equal(t, map[string]interface{}{"name": "board"}, s.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("signal not received")
	}
}

func TestSendCmd_Errors(t *testing.T) {
	_, err := execute(t, "send", "ping")
	assert.ErrorContains(t, err, "socket_path")

	path, _ := writeConfig(t, "[core]\nsocket_path = \"absent.sock\"\n")
	_, err = execute(t, "--config", path, "send", "ping", "{broken")
	assert.ErrorContains(t, err, "invalid payload")

	_, err = execute(t, "--config", path, "send")
	assert.Error(t, err)
}
