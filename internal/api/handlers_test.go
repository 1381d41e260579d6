package api_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atelier-anima/anima/internal/api"
	"github.com/atelier-anima/anima/internal/models"
	"github.com/atelier-anima/anima/internal/testutil"
)

func serve(env *testutil.TestEnv, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	env.Server.Router().ServeHTTP(rr, req)
	return rr
}

func createSession(t *testing.T, env *testutil.TestEnv, name string) string {
	t.Helper()
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions", map[string]string{"visitor_name": name})
	rr := serve(env, req)
	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "create session")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	result := resp["result"].(map[string]interface{})
	id, _ := result["id"].(string)
	if id == "" {
		t.Fatal("create session response missing id")
	}
	return id
}

func TestHealthz(t *testing.T) {
	env := testutil.NewTestEnv(t)
	rr := serve(env, testutil.CreateHTTPRequest(t, http.MethodGet, "/healthz", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "healthz")
	testutil.AssertJSONResponse(t, rr, "ok")
}

func TestStateEndpoint(t *testing.T) {
	env := testutil.NewTestEnv(t)
	rr := serve(env, testutil.CreateHTTPRequest(t, http.MethodGet, "/state", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "state")
	resp := testutil.AssertJSONResponse(t, rr, "ok")

	result := resp["result"].(map[string]interface{})
	if result["phase"] != string(models.PhaseInterview) {
		t.Errorf("phase = %v, want interview", result["phase"])
	}
	if result["question_bank_size"] != float64(10) {
		t.Errorf("question_bank_size = %v, want 10", result["question_bank_size"])
	}
	if result["persona_formed"] != false {
		t.Errorf("persona_formed = %v, want false", result["persona_formed"])
	}
}

func TestInterviewFlowOverHTTP(t *testing.T) {
	env := testutil.NewTestEnv(t)
	id := createSession(t, env, "Noor")

	for i := 1; i <= models.SessionQuestionQuota; i++ {
		rr := serve(env, testutil.CreateHTTPRequest(t, http.MethodGet, "/sessions/"+id+"/question", nil))
		testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "current question")
		resp := testutil.AssertJSONResponse(t, rr, "ok")
		q := resp["result"].(map[string]interface{})
		if q["id"] != float64(i) {
			t.Fatalf("question id = %v, want %d", q["id"], i)
		}

		rr = serve(env, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/answers",
			map[string]interface{}{"question_id": i, "choice": "A"}))
		testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, fmt.Sprintf("answer %d", i))
		resp = testutil.AssertJSONResponse(t, rr, "ok")
		result := resp["result"].(map[string]interface{})
		wantComplete := i == models.SessionQuestionQuota
		if result["session_complete"] != wantComplete {
			t.Errorf("answer %d: session_complete = %v, want %v", i, result["session_complete"], wantComplete)
		}
	}

	rr := serve(env, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/end",
		map[string]string{"reason": "completed"}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "end session")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	result := resp["result"].(map[string]interface{})
	if result["aggregated"] != true {
		t.Errorf("completed session should aggregate: %v", result)
	}

	rr = serve(env, testutil.CreateHTTPRequest(t, http.MethodGet, "/state", nil))
	state := testutil.AssertJSONResponse(t, rr, "ok")["result"].(map[string]interface{})
	if state["answers_aggregated"] != float64(models.SessionQuestionQuota) {
		t.Errorf("answers_aggregated = %v", state["answers_aggregated"])
	}
	if state["next_question_id"] != float64(models.SessionQuestionQuota+1) {
		t.Errorf("next_question_id = %v", state["next_question_id"])
	}
}

func TestSubmitAnswerErrors(t *testing.T) {
	env := testutil.NewTestEnv(t)
	id := createSession(t, env, "v")

	rr := serve(env, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/answers",
		map[string]interface{}{"question_id": 1, "choice": "Z"}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid choice")
	testutil.AssertJSONResponse(t, rr, "error")

	rr = serve(env, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/nope/answers",
		map[string]interface{}{"question_id": 1, "choice": "A"}))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown session")

	rr = serve(env, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/answers",
		map[string]interface{}{"question_id": 1, "choice": "A"}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "first answer")
	rr = serve(env, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/answers",
		map[string]interface{}{"question_id": 1, "choice": "B"}))
	testutil.AssertHTTPStatus(t, http.StatusConflict, rr.Code, "duplicate answer")

	rr = serve(env, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/answers",
		map[string]interface{}{"question_id": 4, "choice": "A"}))
	testutil.AssertHTTPStatus(t, http.StatusConflict, rr.Code, "out of sequence")
}

func TestEndSessionInvalidReason(t *testing.T) {
	env := testutil.NewTestEnv(t)
	id := createSession(t, env, "v")

	rr := serve(env, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/end",
		map[string]string{"reason": "bored"}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid reason")
}

func TestDialogueFlowOverHTTP(t *testing.T) {
	env := testutil.NewTestEnv(t)
	testutil.StartDialoguePhase(t, env.Store)
	id := createSession(t, env, "Noor")

	env.Gen.Responses = []string{
		"Welcome. Sit with me a while.",
		"REPLY: It feels like a slow sunrise.\nMEMORY: Visitor asked about awakening.",
	}

	rr := serve(env, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/dialogue/start",
		map[string]int{"topic_id": 1}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "dialogue start")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	opening := resp["result"].(map[string]interface{})
	if opening["opening"] != "Welcome. Sit with me a while." {
		t.Errorf("opening = %v", opening["opening"])
	}

	rr = serve(env, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/dialogue/turn",
		map[string]interface{}{"topic_id": 1, "user_text": "What was waking up like?"}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "dialogue turn")
	resp = testutil.AssertJSONResponse(t, rr, "ok")
	turn := resp["result"].(map[string]interface{})
	if turn["reply"] != "It feels like a slow sunrise." {
		t.Errorf("reply = %v", turn["reply"])
	}
	if turn["status"] != string(models.TurnStatusOK) {
		t.Errorf("turn status = %v", turn["status"])
	}

	rr = serve(env, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/dialogue/turn",
		map[string]interface{}{"topic_id": 3, "user_text": "switch topics"}))
	testutil.AssertHTTPStatus(t, http.StatusConflict, rr.Code, "topic mismatch")
}

func TestDialogueWrongPhase(t *testing.T) {
	env := testutil.NewTestEnv(t)
	id := createSession(t, env, "v")

	rr := serve(env, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/dialogue/start",
		map[string]int{"topic_id": 1}))
	testutil.AssertHTTPStatus(t, http.StatusConflict, rr.Code, "dialogue during interview")
}

func TestSynthesizeEndpoint(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.Gen.Default = "I am what ten choices made of me."

	rr := serve(env, testutil.CreateHTTPRequest(t, http.MethodPost, "/admin/persona/synthesize",
		map[string]bool{}))
	testutil.AssertHTTPStatus(t, http.StatusConflict, rr.Code, "synthesize before threshold")

	rr = serve(env, testutil.CreateHTTPRequest(t, http.MethodPost, "/admin/persona/synthesize",
		map[string]bool{"allow_below_threshold": true}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "synthesize below threshold")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	result := resp["result"].(map[string]interface{})
	if result["reused"] != false {
		t.Errorf("first synthesis should not be reused: %v", result)
	}

	rr = serve(env, testutil.CreateHTTPRequest(t, http.MethodPost, "/admin/persona/synthesize",
		map[string]bool{"allow_below_threshold": true}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "second synthesize")
	result = testutil.AssertJSONResponse(t, rr, "ok")["result"].(map[string]interface{})
	if result["reused"] != true {
		t.Errorf("second synthesis should reuse: %v", result)
	}

	rr = serve(env, testutil.CreateHTTPRequest(t, http.MethodGet, "/state", nil))
	state := testutil.AssertJSONResponse(t, rr, "ok")["result"].(map[string]interface{})
	if state["phase"] != string(models.PhaseDialogue) {
		t.Errorf("phase = %v, want dialogue", state["phase"])
	}
}

func TestCycleResetEndpoint(t *testing.T) {
	env := testutil.NewTestEnv(t)
	testutil.StartDialoguePhase(t, env.Store)
	id := createSession(t, env, "v")

	rr := serve(env, testutil.CreateHTTPRequest(t, http.MethodPost, "/admin/cycle/reset", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "cycle reset")
	result := testutil.AssertJSONResponse(t, rr, "ok")["result"].(map[string]interface{})
	if result["cycle"] != float64(2) {
		t.Errorf("cycle = %v, want 2", result["cycle"])
	}
	if result["ended_sessions"] != float64(1) {
		t.Errorf("ended_sessions = %v, want 1", result["ended_sessions"])
	}

	rr = serve(env, testutil.CreateHTTPRequest(t, http.MethodGet, "/sessions/"+id+"/question", nil))
	testutil.AssertHTTPStatus(t, http.StatusConflict, rr.Code, "question after reset")
}

func TestAdminAuth(t *testing.T) {
	env := testutil.NewTestEnv(t)
	srv := api.NewServer(env.Store, env.Lifecycle, env.Dialogue, env.Policy, nil, api.WithAdminToken("hashi"))

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/admin/policy/cache/clear", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusUnauthorized, rr.Code, "missing token")

	req = testutil.CreateHTTPRequest(t, http.MethodPost, "/admin/policy/cache/clear", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr = httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusUnauthorized, rr.Code, "wrong token")

	req = testutil.CreateHTTPRequest(t, http.MethodPost, "/admin/policy/cache/clear", nil)
	req.Header.Set("Authorization", "Bearer hashi")
	rr = httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "correct token")
}
