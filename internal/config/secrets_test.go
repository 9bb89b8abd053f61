package config

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type mockSSMClient struct {
	calls   [][]string
	values  map[string]string
	invalid []string
	err     error
}

func (m *mockSSMClient) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	m.calls = append(m.calls, in.Names)
	if m.err != nil {
		return nil, m.err
	}
	out := &ssm.GetParametersOutput{InvalidParameters: m.invalid}
	for _, name := range in.Names {
		if v, ok := m.values[name]; ok {
			out.Parameters = append(out.Parameters, ssmtypes.Parameter{Name: aws.String(name), Value: aws.String(v)})
		}
	}
	return out, nil
}

func TestSSMProvider_BatchesByTen(t *testing.T) {
	client := &mockSSMClient{values: map[string]string{}}
	keys := make([]string, 23)
	for i := range keys {
		keys[i] = fmt.Sprintf("/p/%d", i)
		client.values[keys[i]] = fmt.Sprintf("v%d", i)
	}
	p := newSSMProviderWithClient("us-east-1", client)

	got, err := p.GetParametersBatch(context.Background(), keys)
	if err != nil {
		t.Fatalf("GetParametersBatch: %v", err)
	}
	if len(client.calls) != 3 {
		t.Errorf("calls = %d, want 3", len(client.calls))
	}
	if len(got) != 23 || got["/p/22"] != "v22" {
		t.Errorf("unexpected result: %d entries", len(got))
	}
}

func TestSSMProvider_InvalidParameters(t *testing.T) {
	client := &mockSSMClient{invalid: []string{"/p/missing"}}
	p := newSSMProviderWithClient("us-east-1", client)

	_, err := p.GetParametersBatch(context.Background(), []string{"/p/missing"})
	if err == nil {
		t.Fatal("expected error for invalid parameters")
	}
}

func TestSSMProvider_ClientError(t *testing.T) {
	boom := errors.New("access denied")
	p := newSSMProviderWithClient("us-east-1", &mockSSMClient{err: boom})

	_, err := p.GetParametersBatch(context.Background(), []string{"/p/a"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}

func TestSSMProvider_EmptyKeys(t *testing.T) {
	p := newSSMProviderWithClient("us-east-1", &mockSSMClient{})

	got, err := p.GetParametersBatch(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestEnvVarProvider(t *testing.T) {
	t.Setenv("DAYPASS_TEST_SECRET", "value")
	p := NewEnvVarProvider()

	got, err := p.GetParametersBatch(context.Background(), []string{"DAYPASS_TEST_SECRET", "DAYPASS_TEST_ABSENT"})
	if err != nil {
		t.Fatalf("GetParametersBatch: %v", err)
	}
	if got["DAYPASS_TEST_SECRET"] != "value" {
		t.Errorf("got %v", got)
	}
	if _, ok := got["DAYPASS_TEST_ABSENT"]; ok {
		t.Error("absent key should be omitted")
	}
}
