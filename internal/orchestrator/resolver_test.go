package orchestrator

import (
	"fmt"
	"testing"

	"github.com/clintjedwards/gofer-sub001/internal/models"
)

type fakeObjectStore struct {
	objects map[string][]byte
}

func (f *fakeObjectStore) GetObject(key string) ([]byte, error) {
	content, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object for key %q", key)
	}
	return content, nil
}

func (f *fakeObjectStore) PutObject(key string, content []byte, force bool) error {
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = content
	return nil
}

func (f *fakeObjectStore) ListObjectKeys(prefix string) ([]string, error) { return nil, nil }
func (f *fakeObjectStore) DeleteObject(key string) error                  { delete(f.objects, key); return nil }

type fakeSecretStore struct {
	secrets map[string]string
}

func (f *fakeSecretStore) GetSecret(key string) (string, error) {
	secret, ok := f.secrets[key]
	if !ok {
		return "", fmt.Errorf("no secret for key %q", key)
	}
	return secret, nil
}

func (f *fakeSecretStore) PutSecret(key, content string, force bool) error {
	if f.secrets == nil {
		f.secrets = map[string]string{}
	}
	f.secrets[key] = content
	return nil
}

func (f *fakeSecretStore) DeleteSecret(key string) error { delete(f.secrets, key); return nil }

func TestResolveVariablesPrecedenceAndInterpolation(t *testing.T) {
	objects := &fakeObjectStore{objects: map[string][]byte{
		"test_ns_test_pipe_shared_output": []byte("from-pipeline-store"),
	}}
	secrets := &fakeSecretStore{secrets: map[string]string{
		"test_ns_test_pipe_db_password": "hunter2",
	}}

	orc := &Orchestrator{objectStore: objects, secretStore: secrets}

	pipeline := models.PipelineMetadata{NamespaceID: "test_ns", ID: "test_pipe"}
	run := models.Run{
		RunID:     1,
		Variables: []models.Variable{{Key: "greeting", Value: "overridden-by-run"}},
	}
	task := models.Task{
		ID: "build",
		Variables: map[string]string{
			"greeting": "hello",
			"password": "secret{{ db_password }}",
			"shared":   "pipeline{{ shared_output }}",
		},
	}

	variables, err := orc.resolveVariables(pipeline, run, task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byKey := map[string]string{}
	for _, v := range variables {
		byKey[v.Key] = v.Value
	}

	if byKey["GREETING"] != "overridden-by-run" {
		t.Errorf("expected run-supplied value to win over task-static value, got %q", byKey["GREETING"])
	}
	if byKey["PASSWORD"] != "hunter2" {
		t.Errorf("expected secret interpolation, got %q", byKey["PASSWORD"])
	}
	if byKey["SHARED"] != "from-pipeline-store" {
		t.Errorf("expected pipeline object interpolation, got %q", byKey["SHARED"])
	}
	if byKey["GOFER_PIPELINE_ID"] != "test_pipe" {
		t.Errorf("expected system variable GOFER_PIPELINE_ID, got %q", byKey["GOFER_PIPELINE_ID"])
	}
}

func TestResolveVariablesInjectsTokenAsLiteralBeforeInterpolation(t *testing.T) {
	secrets := &fakeSecretStore{secrets: map[string]string{
		"test_ns_test_pipe_gofer_api_token_run_id_7": "sometoken",
	}}
	orc := &Orchestrator{objectStore: &fakeObjectStore{}, secretStore: secrets}

	pipeline := models.PipelineMetadata{NamespaceID: "test_ns", ID: "test_pipe"}
	run := models.Run{RunID: 7}
	task := models.Task{ID: "build", InjectAPIToken: true}

	variables, err := orc.resolveVariables(pipeline, run, task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, v := range variables {
		if v.Key == "GOFER_TOKEN" {
			if v.Value != "sometoken" {
				t.Errorf("expected GOFER_TOKEN to resolve to the injected secret, got %q", v.Value)
			}
			return
		}
	}
	t.Fatal("expected GOFER_TOKEN variable to be present")
}

func TestResolveVariablesDropsEmptyKeys(t *testing.T) {
	orc := &Orchestrator{objectStore: &fakeObjectStore{}, secretStore: &fakeSecretStore{}}

	pipeline := models.PipelineMetadata{NamespaceID: "test_ns", ID: "test_pipe"}
	run := models.Run{RunID: 1}
	task := models.Task{
		ID:        "build",
		Variables: map[string]string{"  ": "ignored"},
	}

	variables, err := orc.resolveVariables(pipeline, run, task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, v := range variables {
		if v.Key == "" {
			t.Fatal("expected empty-key variable to be dropped")
		}
	}
}
