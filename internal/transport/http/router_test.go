package http

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"postboard/internal/config"
	"postboard/internal/httputil"
	"postboard/internal/model"
	"postboard/internal/repository/memstore"
	"postboard/internal/storage"
)

type captureMailer struct {
	bodies []string
}

func (m *captureMailer) Send(ctx context.Context, to, subject, body string) error {
	m.bodies = append(m.bodies, body)
	return nil
}

type testAPI struct {
	handler http.Handler
	objects *storage.MemoryStorage
	mailer  *captureMailer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	api := &testAPI{
		objects: storage.NewMemoryStorage("media", "https://cdn.test"),
		mailer:  &captureMailer{},
	}
	cfg := &config.Config{
		JWTSecret:      "test-secret",
		TokenMaxAge:    3600,
		MaxUploadBytes: 1 << 20,
	}
	api.handler = NewAPI(cfg, Dependencies{
		Store:   memstore.New(),
		Objects: api.objects,
		Mailer:  api.mailer,
	})
	return api
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

// doMultipart sends fields plus an optional PNG under "file".
func (a *testAPI) doMultipart(t *testing.T, method, path, token string, fields map[string]string, withFile bool) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if withFile {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="sunset.png"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		part.Write(testPNG(t))
	}
	mw.Close()

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) register(t *testing.T, username string) (model.UserSummary, string) {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register %s: status = %d body = %s", username, rec.Code, rec.Body)
	}
	var res model.AuthResponse
	decode(t, rec, &res)
	return res.User, res.Token
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httputil.ErrorResponse
	decode(t, rec, &body)
	return body.Error.Message
}

// =============================================================================
// END-TO-END FLOW
// =============================================================================

func TestAPI_PostLifecycle(t *testing.T) {
	api := newTestAPI(t)

	// register + login
	alice, _ := api.register(t, "alice")
	rec := api.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status = %d body = %s", rec.Code, rec.Body)
	}
	var login model.AuthResponse
	decode(t, rec, &login)
	if login.User.ID != alice.ID || login.Token == "" {
		t.Fatalf("login response = %+v", login)
	}
	token := login.Token

	// create
	rec = api.doMultipart(t, http.MethodPost, "/api/posts", token, map[string]string{
		"title":       "Sunset",
		"description": "At the beach",
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d body = %s", rec.Code, rec.Body)
	}
	var created model.PostEnvelope
	decode(t, rec, &created)
	if created.Post.Title != "Sunset" || created.Post.Owner == nil || created.Post.Owner.ID != alice.ID {
		t.Fatalf("created post = %+v", created.Post)
	}
	if !strings.HasPrefix(created.Post.ImageURL, "https://cdn.test/posts/") {
		t.Errorf("image url = %q", created.Post.ImageURL)
	}
	if api.objects.Len() != 1 {
		t.Errorf("objects = %d, want 1", api.objects.Len())
	}
	postPath := "/api/posts/" + created.Post.ID

	// get
	rec = api.do(t, http.MethodGet, postPath, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d", rec.Code)
	}
	var got model.PostEnvelope
	decode(t, rec, &got)
	if got.Post.Title != "Sunset" || got.Post.Description != "At the beach" {
		t.Errorf("got post = %+v", got.Post)
	}

	// stranger cannot delete
	_, bobToken := api.register(t, "bob")
	rec = api.do(t, http.MethodDelete, postPath, bobToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stranger delete: status = %d, want 403", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "You are not authorized to delete this post" {
		t.Errorf("message = %q", msg)
	}

	// owner deletes
	rec = api.do(t, http.MethodDelete, postPath, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status = %d body = %s", rec.Code, rec.Body)
	}
	if api.objects.Len() != 0 {
		t.Errorf("objects = %d, want image removed", api.objects.Len())
	}

	rec = api.do(t, http.MethodGet, postPath, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", rec.Code)
	}
}

// =============================================================================
// ROUTE BEHAVIOUR
// =============================================================================

func TestAPI_CreatePostWithoutFile(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.register(t, "alice")

	rec := api.doMultipart(t, http.MethodPost, "/api/posts", token, map[string]string{
		"title":       "Valid",
		"description": "Also valid",
	}, false)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "Please attach a file" {
		t.Errorf("message = %q", msg)
	}
	if api.objects.Len() != 0 {
		t.Error("nothing should be uploaded")
	}
}

func TestAPI_RequiresToken(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/api/posts", "/api/users/some-id"} {
		rec := api.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s: status = %d, want 401", path, rec.Code)
		}
	}
}

func TestAPI_DuplicateRegistration(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice")

	rec := api.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"username": "alice",
		"email":    "other@example.com",
		"password": "secret123",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "User already exists" {
		t.Errorf("message = %q", msg)
	}
}

func TestAPI_RegisterValidation(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"username": "al",
		"email":    "nope",
		"password": "123",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body httputil.ErrorResponse
	decode(t, rec, &body)
	if body.Error.Code != model.CodeValidation || len(body.Error.Fields) != 3 {
		t.Errorf("error = %+v, want 3 field errors", body.Error)
	}
}

func TestAPI_LikesAndComments(t *testing.T) {
	api := newTestAPI(t)
	_, aliceToken := api.register(t, "alice")
	bob, bobToken := api.register(t, "bob")

	rec := api.doMultipart(t, http.MethodPost, "/api/posts", aliceToken, map[string]string{
		"title": "t", "description": "d",
	}, true)
	var created model.PostEnvelope
	decode(t, rec, &created)
	postPath := "/api/posts/" + created.Post.ID

	// like, unlike
	for i, want := range []model.LikeToggleResponse{
		{Message: "Post liked successfully", LikeResult: model.LikeResult{Liked: true, Likes: 1}},
		{Message: "Post unliked successfully", LikeResult: model.LikeResult{Liked: false, Likes: 0}},
	} {
		rec = api.do(t, http.MethodPost, postPath+"/toggleLike", bobToken, nil)
		var res model.LikeToggleResponse
		decode(t, rec, &res)
		if res != want {
			t.Errorf("toggle %d = %+v, want %+v", i+1, res, want)
		}
	}

	// comment via both paths
	for _, suffix := range []string{"/comments", "/comment"} {
		rec = api.do(t, http.MethodPost, postPath+suffix, bobToken, map[string]string{"comment": "Nice" + suffix})
		if rec.Code != http.StatusCreated {
			t.Fatalf("POST %s: status = %d body = %s", suffix, rec.Code, rec.Body)
		}
	}

	rec = api.do(t, http.MethodGet, postPath+"/comments?page=1&limit=1", aliceToken, nil)
	var list model.CommentListResponse
	decode(t, rec, &list)
	if list.TotalComments != 2 || len(list.Comments) != 1 || list.Limit != 1 {
		t.Fatalf("comments = %+v", list)
	}
	if c := list.Comments[0]; c.Content != "Nice/comments" || c.Author == nil || c.Author.ID != bob.ID {
		t.Errorf("first comment = %+v", c)
	}

	rec = api.do(t, http.MethodGet, "/api/posts/missing/comments", aliceToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("comments of missing post: status = %d, want 404", rec.Code)
	}
}

func TestAPI_FollowAndProfile(t *testing.T) {
	api := newTestAPI(t)
	alice, aliceToken := api.register(t, "alice")
	bob, _ := api.register(t, "bob")

	rec := api.do(t, http.MethodPost, "/api/users/toggleFollow/"+bob.ID, aliceToken, nil)
	var follow model.FollowToggleResponse
	decode(t, rec, &follow)
	if !follow.Following || follow.User.ID != bob.ID || follow.Message != "User followed successfully" {
		t.Fatalf("follow = %+v", follow)
	}

	rec = api.do(t, http.MethodPost, "/api/users/toggleFollow/"+alice.ID, aliceToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("self follow: status = %d, want 400", rec.Code)
	}

	rec = api.do(t, http.MethodGet, "/api/users/"+bob.ID, aliceToken, nil)
	var profile model.ProfileResponse
	decode(t, rec, &profile)
	if profile.TotalFollowers != 1 || profile.ProfileViews != 1 || profile.Followers[0].ID != alice.ID {
		t.Errorf("profile = %+v", profile)
	}
}

func TestAPI_UpdateUserOwnerOnly(t *testing.T) {
	api := newTestAPI(t)
	alice, aliceToken := api.register(t, "alice")
	_, bobToken := api.register(t, "bob")

	rec := api.do(t, http.MethodPut, "/api/users/"+alice.ID, bobToken, map[string]string{"username": "mallory"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stranger update: status = %d, want 403", rec.Code)
	}

	rec = api.doMultipart(t, http.MethodPut, "/api/users/"+alice.ID, aliceToken, map[string]string{"username": "alice2"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d body = %s", rec.Code, rec.Body)
	}
	var res model.UserEnvelope
	decode(t, rec, &res)
	if res.User.Username != "alice2" || !strings.HasPrefix(res.User.ProfilePicture, "https://cdn.test/users/"+alice.ID) {
		t.Errorf("updated user = %+v", res.User)
	}
}

func TestAPI_PasswordReset(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice")

	rec := api.do(t, http.MethodPost, "/api/users/request-password-reset", "", map[string]string{"email": "alice@example.com"})
	if rec.Code != http.StatusOK || len(api.mailer.bodies) != 1 {
		t.Fatalf("request reset: status = %d mails = %d", rec.Code, len(api.mailer.bodies))
	}

	body := api.mailer.bodies[0]
	start := strings.Index(body, "/reset/") + len("/reset/")
	token := body[start : start+strings.Index(body[start:], "\n")]

	reset := map[string]string{"token": token, "newPassword": "brandnew"}
	if rec = api.do(t, http.MethodPost, "/api/users/reset-password", "", reset); rec.Code != http.StatusOK {
		t.Fatalf("reset: status = %d body = %s", rec.Code, rec.Body)
	}
	rec = api.do(t, http.MethodPost, "/api/users/reset-password", "", reset)
	if msg := errorMessage(t, rec); rec.Code != http.StatusBadRequest || msg != "Invalid or expired token" {
		t.Errorf("second reset: status = %d message = %q", rec.Code, msg)
	}

	rec = api.do(t, http.MethodPost, "/api/users/login", "", map[string]string{"email": "alice@example.com", "password": "brandnew"})
	if rec.Code != http.StatusOK {
		t.Errorf("login with new password: status = %d", rec.Code)
	}

	rec = api.do(t, http.MethodPost, "/api/users/request-password-reset", "", map[string]string{"email": "ghost@example.com"})
	if msg := errorMessage(t, rec); rec.Code != http.StatusBadRequest || msg != "User not found" {
		t.Errorf("unknown email: status = %d message = %q", rec.Code, msg)
	}
}

func TestAPI_HugePageIsEmpty(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.register(t, "alice")

	rec := api.doMultipart(t, http.MethodPost, "/api/posts", token, map[string]string{
		"title": "t", "description": "d",
	}, true)
	var created model.PostEnvelope
	decode(t, rec, &created)

	rec = api.do(t, http.MethodGet, "/api/posts?page=4611686018427387905", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("posts: status = %d body = %s", rec.Code, rec.Body)
	}
	var posts model.PostListResponse
	decode(t, rec, &posts)
	if len(posts.Posts) != 0 || posts.TotalPosts != 1 || posts.Page != model.MaxPage {
		t.Errorf("posts = %+v, want empty page %d of 1 post", posts, model.MaxPage)
	}

	rec = api.do(t, http.MethodGet, "/api/posts/"+created.Post.ID+"/comments?page=9223372036854775807&limit=100", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("comments: status = %d body = %s", rec.Code, rec.Body)
	}
	var comments model.CommentListResponse
	decode(t, rec, &comments)
	if len(comments.Comments) != 0 {
		t.Errorf("comments = %+v, want empty", comments)
	}
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
