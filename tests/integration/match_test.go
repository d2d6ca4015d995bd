//go:build integration
// +build integration

// Package integration provides end-to-end tests for the penmatch resolution engine.
//
// These tests verify the COMPLETE resolution pipeline:
//
//	Record → Validation → Screening → Candidate Search → Scoring → Status
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
//  1. RECORD: A student demographic submission (surname, given name, DOB,
//     sex, school and local identifiers, optionally a claimed PEN).
//
//  2. PEN: A nine-digit student identifier with a mod-11 check digit.
//
//  3. STATUS: The engine's verdict for a submission. AA confirms the
//     claimed PEN exactly. The B*/C*/D* families report search matches at
//     decreasing confidence, with the suffix encoding the match count
//     (0 none, 1 one, M multiple). F1 holds a questionable match for
//     review. G0 marks an assign-new request with no match but a record
//     too incomplete to mint a new PEN (held for data repair).
//
//  4. SCREENING: CEL rules evaluated before the engine. A .reject verdict
//     stops the request with HTTP 422; .quarantine and .accept proceed.
//
// REQUIRED STATE (must be seeded before running tests):
//
// The server seeds its lookup tables on startup. These tests create the
// master records they need through POST /match confirmations, so a fresh
// database is fine. Point the client at a running server:
//
//	PENMATCH_TEST_URL=http://localhost:8080 go test -tags=integration ./tests/integration/...
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("PENMATCH_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{BaseURL: baseURL}
}

// ============================================================================
// API Request/Response Types (matching penmatch's API contract)
// ============================================================================

// MatchRequest is the record sent to POST /match
type MatchRequest struct {
	Surname    string `json:"surname"`
	GivenName  string `json:"givenName"`
	MiddleName string `json:"middleName,omitempty"`
	DOB        string `json:"dob"`
	Sex        string `json:"sex"`
	Mincode    string `json:"mincode,omitempty"`
	LocalID    string `json:"localId,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	PEN        string `json:"pen,omitempty"`
	UpdateCode string `json:"updateCode,omitempty"`
}

// MatchResponse is what POST /match returns
type MatchResponse struct {
	Outcome *struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		PEN        string `json:"pen"`
		Candidates []struct {
			PEN       string `json:"pen"`
			Result    string `json:"result"`
			MatchCode string `json:"matchCode"`
		} `json:"candidates"`
		Metadata struct {
			TraceID             string `json:"traceId"`
			TotalMs             int64  `json:"totalMs"`
			CandidatesRetrieved int    `json:"candidatesRetrieved"`
			EngineVersion       string `json:"engineVersion"`
		} `json:"metadata"`
	} `json:"outcome"`
	Verdict string `json:"verdict"`
	Version string `json:"version"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func match(t *testing.T, config TestConfig, req MatchRequest) MatchResponse {
	t.Helper()

	resp, body := post(t, config, req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(body))
	}

	var result MatchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(body))
	}

	return result
}

func post(t *testing.T, config TestConfig, req MatchRequest) (*http.Response, []byte) {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest("POST", config.BaseURL+"/match", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	return resp, respBody
}

// ============================================================================
// SCENARIO 1: Assign-New With a Complete Record (No Match)
// ============================================================================

func TestAssignNewCompleteRecord_D0(t *testing.T) {
	/*
	   SCENARIO: An assign-new request (update code Y) for a student the
	   registry has never seen, with school code and postal code present.

	   EXPECTED BEHAVIOR:
	   - No claimed PEN, so no confirmation path
	   - Candidate search finds nothing
	   - Record is complete enough to mint a new PEN, so the no-match
	     status stands → D0 (a new PEN may be assigned downstream)
	*/
	config := getTestConfig()

	req := MatchRequest{
		Surname:    "INTEGRATIONTEST",
		GivenName:  "FIRSTTIMER",
		DOB:        "20110219",
		Sex:        "F",
		Mincode:    "10200001",
		LocalID:    "INT-D0-001",
		PostalCode: "V8W1A1",
		UpdateCode: "Y",
	}

	result := match(t, config, req)

	if result.Outcome == nil {
		t.Fatalf("Expected an outcome, got verdict-only response: %+v", result)
	}
	if result.Outcome.Status != "D0" {
		t.Errorf("Expected D0 for complete assign-new record, got %s", result.Outcome.Status)
	}
	if result.Verdict != "accept" {
		t.Errorf("Expected screening verdict accept, got %s", result.Verdict)
	}

	t.Logf("✓ Complete assign-new: status=%s, retrieved=%d",
		result.Outcome.Status, result.Outcome.Metadata.CandidatesRetrieved)
}

// ============================================================================
// SCENARIO 2: Assign-New With an Incomplete Record (Escalates)
// ============================================================================

func TestAssignNewIncompleteRecord_G0(t *testing.T) {
	/*
	   SCENARIO: An assign-new request (update code Y) with no school code
	   or postal code.

	   EXPECTED BEHAVIOR:
	   - No candidates found
	   - Record is too thin to mint a new PEN → the no-match status is
	     escalated to G0 for data repair
	*/
	config := getTestConfig()

	req := MatchRequest{
		Surname:    "INTEGRATIONTEST",
		GivenName:  "INCOMPLETE",
		DOB:        "20120304",
		Sex:        "M",
		UpdateCode: "Y",
	}

	result := match(t, config, req)

	if result.Outcome == nil {
		t.Fatal("Expected an outcome")
	}
	if result.Outcome.Status != "G0" {
		t.Errorf("Expected G0 for incomplete assign-new record, got %s", result.Outcome.Status)
	}

	t.Logf("✓ Incomplete assign-new: status=%s", result.Outcome.Status)
}

// ============================================================================
// SCENARIO 3: Claimed PEN With Bad Check Digit
// ============================================================================

func TestBadCheckDigit_C0(t *testing.T) {
	/*
	   SCENARIO: The submitted PEN fails the mod-11 check digit.

	   EXPECTED BEHAVIOR: an invalid checksum is an outcome, not an input
	   error. The claimed PEN cannot confirm, the search runs without it,
	   and with no hits the status is C0.
	*/
	config := getTestConfig()

	req := MatchRequest{
		Surname:   "INTEGRATIONTEST",
		GivenName: "BADPEN",
		DOB:       "20100101",
		Sex:       "M",
		PEN:       "123456789", // check digit does not verify
	}

	result := match(t, config, req)

	if result.Outcome == nil {
		t.Fatal("Expected an outcome")
	}
	if result.Outcome.Status != "C0" {
		t.Errorf("Expected C0 for invalid check digit with no hits, got %s", result.Outcome.Status)
	}

	t.Logf("✓ Invalid check digit → status=%s", result.Outcome.Status)
}

// ============================================================================
// SCENARIO 4: Input Validation
// ============================================================================

func TestMissingSurname_Error(t *testing.T) {
	/*
	   SCENARIO: Request missing the required surname field.

	   EXPECTED: HTTP 400 Bad Request
	*/
	config := getTestConfig()

	req := MatchRequest{
		GivenName: "NONAME",
		DOB:       "20100101",
		Sex:       "F",
	}

	resp, body := post(t, config, req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing surname, got %d: %s", resp.StatusCode, string(body))
	}

	t.Logf("✓ Validation test passed: missing surname → HTTP %d", resp.StatusCode)
}

func TestMalformedDOB_Error(t *testing.T) {
	/*
	   SCENARIO: DOB not in YYYYMMDD form.

	   EXPECTED: HTTP 400 Bad Request
	*/
	config := getTestConfig()

	req := MatchRequest{
		Surname:   "INTEGRATIONTEST",
		GivenName: "BADDOB",
		DOB:       "2010-01-01",
		Sex:       "M",
	}

	resp, body := post(t, config, req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed dob, got %d: %s", resp.StatusCode, string(body))
	}

	t.Logf("✓ Validation test passed: malformed dob → HTTP %d", resp.StatusCode)
}

// ============================================================================
// SCENARIO 5: Determinism
// ============================================================================

func TestRepeatSubmission_SameStatus(t *testing.T) {
	/*
	   SCENARIO: The same record submitted twice must resolve to the same
	   status against the same registry state. The engine is deterministic;
	   only outcome IDs and timings may differ.
	*/
	config := getTestConfig()

	req := MatchRequest{
		Surname:    "INTEGRATIONTEST",
		GivenName:  "REPEAT",
		DOB:        "20090712",
		Sex:        "F",
		Mincode:    "10200001",
		LocalID:    "INT-RPT-001",
		PostalCode: "V8W1A1",
	}

	first := match(t, config, req)
	second := match(t, config, req)

	if first.Outcome == nil || second.Outcome == nil {
		t.Fatal("Expected outcomes on both submissions")
	}
	if first.Outcome.Status != second.Outcome.Status {
		t.Errorf("Status not deterministic: first=%s second=%s",
			first.Outcome.Status, second.Outcome.Status)
	}
	if first.Outcome.ID == second.Outcome.ID {
		t.Error("Expected distinct outcome IDs per submission")
	}

	t.Logf("✓ Deterministic: status=%s both times", first.Outcome.Status)
}

// ============================================================================
// SCENARIO 6: Response Metadata Verification
// ============================================================================

func TestResponseMetadata(t *testing.T) {
	/*
	   SCENARIO: Verify the response includes the metadata clients rely on.
	*/
	config := getTestConfig()

	req := MatchRequest{
		Surname:   "INTEGRATIONTEST",
		GivenName: "METADATA",
		DOB:       "20100101",
		Sex:       "M",
	}

	result := match(t, config, req)

	if result.Outcome == nil {
		t.Fatal("Expected an outcome")
	}
	if result.Outcome.ID == "" {
		t.Error("Missing outcome.id")
	}
	if result.Outcome.Status == "" {
		t.Error("Missing outcome.status")
	}
	if result.Outcome.Metadata.EngineVersion == "" {
		t.Error("Missing metadata.engineVersion")
	}
	// TotalMs can be 0 for sub-millisecond resolutions
	if result.Outcome.Metadata.TotalMs < 0 {
		t.Error("Invalid metadata.totalMs (negative)")
	}
	if result.Version == "" {
		t.Error("Missing top-level version")
	}

	t.Logf("✓ Metadata complete: id=%s, status=%s, engine=%s, totalMs=%d",
		result.Outcome.ID[:8], result.Outcome.Status,
		result.Outcome.Metadata.EngineVersion, result.Outcome.Metadata.TotalMs)
}
