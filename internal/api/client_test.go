package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/msalah0e/kgraph/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *vault.MemoryVault) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tokens := vault.NewMemory()
	return NewClient(server.URL+"/api/v1/", DefaultPaths, tokens, 5*time.Second), tokens
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp":     exp.Unix(),
		"user_id": 42,
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestNewClient(t *testing.T) {
	client := NewClient("", DefaultPaths, nil, 0)
	assert.Equal(t, DefaultBaseURL, client.BaseURL)
	assert.Equal(t, 15*time.Second, client.HTTPClient.Timeout)
	assert.Equal(t, "http://localhost:8000/api/v1/students/progress/", client.url(client.Paths.Progress))
	assert.Equal(t, "http://localhost:8000/api/v1/students/courses/?page_size=100", client.url(client.Paths.Courses))
}

func TestFetchGraph(t *testing.T) {
	client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/students/knowledge-graph/", r.URL.Path)
		assert.Equal(t, "Bearer opaque-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"success": true, "data": {
			"nodes": [{"id": 1, "label": "Go", "mastery": "88", "x": 12, "y": 50}],
			"edges": [{"source": "1", "target": "2"}],
			"signals": {"quiz_accuracy": 70},
			"meta": {"source": "live_backend"}
		}}`))
	})
	require.NoError(t, tokens.Set(AccessTokenKey, "opaque-token"))

	raw, err := client.FetchGraph(context.Background())
	require.NoError(t, err)
	require.Len(t, raw.Nodes, 1)
	assert.Equal(t, "1", string(raw.Nodes[0].ID))
	assert.Equal(t, 88.0, raw.Nodes[0].Mastery.Or(0))
	assert.True(t, raw.Nodes[0].Positioned())
	assert.Len(t, raw.Edges, 1)
	assert.Equal(t, "live_backend", raw.Meta.Source)
}

func TestFetchGraph_InvalidPayload(t *testing.T) {
	bodies := []string{
		`{"success": false, "data": {"nodes": []}}`,
		`{"success": true}`,
		`{"success": true, "data": null}`,
		`{"success": true, "data": [1, 2]}`,
		`not json`,
	}

	for _, body := range bodies {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
		_, err := client.FetchGraph(context.Background())
		assert.ErrorIs(t, err, ErrInvalidPayload, "body %s", body)
	}
}

func TestFetchGraph_HTTPError(t *testing.T) {
	tests := []struct {
		body   string
		detail string
	}{
		{`{"detail": "Service under maintenance"}`, "Service under maintenance"},
		{`{"error": {"message": "Graph builder crashed"}, "detail": "ignored"}`, "Graph builder crashed"},
		{`{"error": "plain failure"}`, "plain failure"},
		{`<html>bad gateway</html>`, ""},
	}

	for _, tt := range tests {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(tt.body))
		})

		_, err := client.FetchGraph(context.Background())
		require.Error(t, err)
		status, detail := StatusDetail(err)
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, tt.detail, detail)
	}
}

func TestStatusDetail_NetworkError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1/", DefaultPaths, nil, time.Second)
	_, err := client.FetchCourses(context.Background())
	require.Error(t, err)

	status, detail := StatusDetail(err)
	assert.Zero(t, status)
	assert.Empty(t, detail)
}

func TestExtractList(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		count   int
	}{
		{"success envelope", `{"success": true, "data": [{"id": 1}, {"id": 2}]}`, 2},
		{"data list", `{"data": [{"id": 1}]}`, 1},
		{"paginated data", `{"data": {"results": [{"id": 1}, {"id": 2}, {"id": 3}]}}`, 3},
		{"paginated", `{"count": 1, "results": [{"id": 1}]}`, 1},
		{"bare array", `[{"id": 1}, {"id": 2}]`, 2},
		{"object without list", `{"data": {"id": 1}}`, 0},
		{"scalar", `42`, 0},
		{"garbage", `{{{`, 0},
		{"empty", ``, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := ExtractList([]byte(tt.payload))
			assert.NotNil(t, items)
			assert.Len(t, items, tt.count)
		})
	}
}

func TestExtractList_Order(t *testing.T) {
	// data wins over results when both are present
	items := ExtractList([]byte(`{"data": [{"id": "d"}], "results": [{"id": "r1"}, {"id": "r2"}]}`))
	require.Len(t, items, 1)
	assert.JSONEq(t, `{"id": "d"}`, string(items[0]))
}

func TestFetchCourses(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/students/courses/", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("page_size"))
		w.Write([]byte(`{"success": true, "data": {"results": [
			{"id": 7, "title": "Algebra", "total_lessons": "9", "progress_percentage": 45.5, "level": "beginner", "category": "math"},
			"broken",
			{"id": "8", "title": null, "total_lessons": null}
		]}}`))
	})

	courses, err := client.FetchCourses(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, "7", string(courses[0].ID))
	assert.Equal(t, 9.0, courses[0].TotalLessons.Or(0))
	assert.Equal(t, "Untitled Course", courses[1].Title.Or("Untitled Course"))
	assert.False(t, courses[1].TotalLessons.Valid)
}

func TestFetchProgress(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"course_id": 7, "course_title": "Algebra", "progress_percentage": "80", "total_lessons": 12}]`))
	})

	rows, err := client.FetchProgress(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "7", string(rows[0].CourseID))
	assert.Equal(t, 80.0, rows[0].ProgressPercentage.Or(0))
}

func TestFetchDashboard(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "data": {"average_quiz_score": 81.3, "total_enrolled_courses": 4}}`))
	})

	summary, err := client.FetchDashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 81.3, summary.AverageQuizScore.Or(0))
	assert.Equal(t, 4.0, summary.TotalEnrolledCourses.Or(0))

	client, _ = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"average_quiz_score": "64"}`))
	})
	summary, err = client.FetchDashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 64.0, summary.AverageQuizScore.Or(0))

	client, _ = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[1, 2]`))
	})
	_, err = client.FetchDashboard(context.Background())
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestUnauthorizedRefreshesAndRetries(t *testing.T) {
	var refreshes int32
	client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/token/refresh/":
			atomic.AddInt32(&refreshes, 1)
			assert.Equal(t, http.MethodPost, r.Method)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "refresh-1", body["refresh"])
			w.Write([]byte(`{"access": "access-2"}`))
		case "/api/v1/students/progress/":
			if r.Header.Get("Authorization") != "Bearer access-2" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"detail": "Given token not valid for any token type"}`))
				return
			}
			w.Write([]byte(`{"data": [{"course_id": 1}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	require.NoError(t, client.SetTokens("access-1", "refresh-1"))

	rows, err := client.FetchProgress(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))

	access, err := tokens.Get(AccessTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "access-2", access)
	refresh, err := tokens.Get(RefreshTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", refresh)
}

func TestUnauthorizedRetriesOnlyOnce(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/token/refresh/" {
			w.Write([]byte(`{"access": "still-bad"}`))
			return
		}
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	require.NoError(t, client.SetTokens("access-1", "refresh-1"))

	_, err := client.FetchProgress(context.Background())
	status, _ := StatusDetail(err)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRejectedRefreshClearsTokens(t *testing.T) {
	client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/token/refresh/" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail": "Token is blacklisted"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})
	require.NoError(t, client.SetTokens("access-1", "refresh-1"))

	_, err := client.FetchCourses(context.Background())
	require.Error(t, err)

	_, err = tokens.Get(AccessTokenKey)
	assert.True(t, vault.IsNotFound(err))
	_, err = tokens.Get(RefreshTokenKey)
	assert.True(t, vault.IsNotFound(err))
}

func TestUnauthorizedWithoutRefreshToken(t *testing.T) {
	client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NotEqual(t, "/api/v1/auth/token/refresh/", r.URL.Path)
		w.WriteHeader(http.StatusUnauthorized)
	})
	require.NoError(t, tokens.Set(AccessTokenKey, "access-1"))

	_, err := client.FetchCourses(context.Background())
	status, _ := StatusDetail(err)
	assert.Equal(t, http.StatusUnauthorized, status)

	access, err := tokens.Get(AccessTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "access-1", access)
}

func TestProactiveRefresh(t *testing.T) {
	now := time.Now()
	expiring := signed(t, now.Add(10*time.Second))
	fresh := signed(t, now.Add(time.Hour))

	var refreshes int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/token/refresh/" {
			atomic.AddInt32(&refreshes, 1)
			json.NewEncoder(w).Encode(map[string]string{"access": fresh, "refresh": "refresh-2"})
			return
		}
		assert.Equal(t, "Bearer "+fresh, r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	})
	require.NoError(t, client.SetTokens(expiring, "refresh-1"))

	_, err := client.FetchCourses(context.Background())
	require.NoError(t, err)
	_, err = client.FetchCourses(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))
	refresh, err := client.Tokens.Get(RefreshTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", refresh)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := TokenExpiry(signed(t, exp))
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	_, ok = TokenExpiry("opaque-token")
	assert.False(t, ok)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, ok = TokenExpiry(noExp)
	assert.False(t, ok)
}
