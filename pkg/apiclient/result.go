package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is the error carried by a response, either inside the envelope or
// as a flat session marker.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSONResult is a decoded API response.
type JSONResult struct {
	Status int
	Data   json.RawMessage
	Meta   map[string]interface{}
	Error  *APIError
	Header http.Header
}

// OK reports a 2xx status.
func (r *JSONResult) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Revoked reports whether the server ended the session.
func (r *JSONResult) Revoked() bool {
	return r.Error != nil && isSessionMarker(r.Error.Code)
}

// Decode unmarshals the envelope data into v.
func (r *JSONResult) Decode(v interface{}) error {
	if len(r.Data) == 0 {
		return ErrUnexpectedBody
	}
	return json.Unmarshal(r.Data, v)
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error json.RawMessage        `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func readJSON(resp *http.Response) (*JSONResult, error) {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}
	result := &JSONResult{Status: resp.StatusCode, Header: resp.Header}
	if len(bytes.TrimSpace(raw)) == 0 {
		return result, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedBody, err)
	}
	result.Data = env.Data
	result.Meta = env.Meta
	result.Error, _ = parseError(raw)
	return result, nil
}

// parseError understands {"error":{"code":..,"message":..}} and the flat
// {"error":"TOKEN_REVOKED","message":..} marker.
func parseError(raw []byte) (*APIError, error) {
	var env struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	body := bytes.TrimSpace(env.Error)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	if body[0] == '"' {
		var code string
		if err := json.Unmarshal(body, &code); err != nil {
			return nil, err
		}
		return &APIError{Code: code, Message: env.Message}, nil
	}
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return nil, err
	}
	return &apiErr, nil
}
