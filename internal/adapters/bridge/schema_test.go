package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/taskwatch/internal/domain"
)

func TestValidatorAcceptsKnownCommands(t *testing.T) {
	validator, err := NewValidator()
	require.NoError(t, err)

	valid := []string{
		`{"type":"check_logging_status"}`,
		`{"type":"get_active_task","id":7}`,
		`{"type":"alter_logging_status","log_status":false,"id":"abc"}`,
		`{"type":"send_message","payload":{"url":"https://tasks.example.com"},"send_flag":true}`,
		`{"type":"inject_script","script":"content/capture.js"}`,
		`{"type":"login","username":"annotator","password":"secret"}`,
		`{"type":"report_tabs","tabs":[{"id":1,"window_id":2,"url":"https://tasks.example.com/home"}]}`,
	}
	for _, envelope := range valid {
		assert.NoError(t, validator.Validate([]byte(envelope)), envelope)
	}
}

func TestValidatorRejectsMalformedEnvelopes(t *testing.T) {
	validator, err := NewValidator()
	require.NoError(t, err)

	tests := map[string]string{
		"not json":         `{"type":`,
		"missing type":     `{"log_status":true}`,
		"unknown type":     `{"type":"reboot"}`,
		"non boolean flag": `{"type":"alter_logging_status","log_status":"yes"}`,
		"missing password": `{"type":"login","username":"annotator"}`,
		"empty script":     `{"type":"inject_script","script":""}`,
		"tab without url":  `{"type":"report_tabs","tabs":[{"id":1}]}`,
		"missing payload":  `{"type":"send_message","send_flag":true}`,
		"object id":        `{"type":"get_active_task","id":{}}`,
	}
	for name, envelope := range tests {
		t.Run(name, func(t *testing.T) {
			err := validator.Validate([]byte(envelope))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}
