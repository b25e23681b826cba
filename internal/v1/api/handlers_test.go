package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covey-town/townservice/internal/v1/town"
)

type stubTokenSource struct {
	err error
}

func (s *stubTokenSource) GetTokenForTown(_ context.Context, coveyTownID, identity string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "video-" + coveyTownID + "-" + identity, nil
}

func newTestRouter(source town.VideoTokenSource) (*town.TownsStore, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	store := town.NewTownsStore(source)
	router := gin.New()
	NewHandler(store).RegisterRoutes(router, nil, nil)
	return store, router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestCreateTown(t *testing.T) {
	_, router := newTestRouter(&stubTokenSource{})

	resp := doJSON(t, router, http.MethodPost, "/towns", gin.H{
		"friendlyName":     "test town",
		"isPubliclyListed": true,
	})

	require.Equal(t, http.StatusOK, resp.Code)
	var body createTownResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.NotEmpty(t, body.CoveyTownID)
	assert.NotEmpty(t, body.CoveyTownPassword)
}

func TestCreateTownRequiresFriendlyName(t *testing.T) {
	_, router := newTestRouter(&stubTokenSource{})

	resp := doJSON(t, router, http.MethodPost, "/towns", gin.H{"isPubliclyListed": true})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestListTownsOnlyPublic(t *testing.T) {
	store, router := newTestRouter(&stubTokenSource{})
	public := store.CreateTown("public town", true)
	store.CreateTown("private town", false)

	resp := doJSON(t, router, http.MethodGet, "/towns", nil)

	require.Equal(t, http.StatusOK, resp.Code)
	var body struct {
		Towns []town.TownListing `json:"towns"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Towns, 1)
	assert.Equal(t, public.CoveyTownID(), body.Towns[0].CoveyTownID)
	assert.Equal(t, town.DefaultCapacity, body.Towns[0].MaximumOccupancy)
}

func TestUpdateTown(t *testing.T) {
	store, router := newTestRouter(&stubTokenSource{})
	controller := store.CreateTown("before", true)

	resp := doJSON(t, router, http.MethodPatch, "/towns/"+controller.CoveyTownID(), gin.H{
		"coveyTownPassword": controller.TownUpdatePassword(),
		"friendlyName":      "after",
	})

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "after", controller.FriendlyName())
}

func TestUpdateTownWrongPassword(t *testing.T) {
	store, router := newTestRouter(&stubTokenSource{})
	controller := store.CreateTown("before", true)

	resp := doJSON(t, router, http.MethodPatch, "/towns/"+controller.CoveyTownID(), gin.H{
		"coveyTownPassword": "wrong",
		"friendlyName":      "after",
	})

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "before", controller.FriendlyName())
}

func TestDeleteTown(t *testing.T) {
	store, router := newTestRouter(&stubTokenSource{})
	controller := store.CreateTown("doomed", true)

	resp := doJSON(t, router, http.MethodDelete,
		"/towns/"+controller.CoveyTownID()+"/"+controller.TownUpdatePassword(), nil)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Nil(t, store.GetControllerForTown(controller.CoveyTownID()))
}

func TestDeleteTownWrongPassword(t *testing.T) {
	store, router := newTestRouter(&stubTokenSource{})
	controller := store.CreateTown("sticky", true)

	resp := doJSON(t, router, http.MethodDelete,
		"/towns/"+controller.CoveyTownID()+"/wrong", nil)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.NotNil(t, store.GetControllerForTown(controller.CoveyTownID()))
}

func TestJoinTown(t *testing.T) {
	store, router := newTestRouter(&stubTokenSource{})
	controller := store.CreateTown("test town", true)

	resp := doJSON(t, router, http.MethodPost, "/sessions", gin.H{
		"userName":    "alice",
		"coveyTownID": controller.CoveyTownID(),
	})

	require.Equal(t, http.StatusOK, resp.Code)
	var body joinTownResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.NotEmpty(t, body.CoveyUserID)
	assert.NotEmpty(t, body.CoveySessionToken)
	assert.Equal(t, "video-"+controller.CoveyTownID()+"-"+body.CoveyUserID, body.ProviderVideoToken)
	assert.Equal(t, "test town", body.FriendlyName)
	assert.True(t, body.IsPubliclyListed)
	require.Len(t, body.CurrentPlayers, 1)
	assert.Equal(t, "alice", body.CurrentPlayers[0].UserName)

	// The returned session token is live on the controller
	assert.NotNil(t, controller.SessionForToken(body.CoveySessionToken))
}

func TestJoinTownUnknownTown(t *testing.T) {
	_, router := newTestRouter(&stubTokenSource{})

	resp := doJSON(t, router, http.MethodPost, "/sessions", gin.H{
		"userName":    "alice",
		"coveyTownID": "no-such-town",
	})

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestJoinTownAtCapacity(t *testing.T) {
	store, router := newTestRouter(&stubTokenSource{})
	controller := store.CreateTown("full town", true)

	for i := 0; i < town.DefaultCapacity; i++ {
		_, err := controller.AddPlayer(context.Background(), town.NewPlayer(fmt.Sprintf("p%d", i)))
		require.NoError(t, err)
	}

	resp := doJSON(t, router, http.MethodPost, "/sessions", gin.H{
		"userName":    "late",
		"coveyTownID": controller.CoveyTownID(),
	})

	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestJoinTownMintFailure(t *testing.T) {
	store, router := newTestRouter(&stubTokenSource{err: errors.New("provider down")})
	controller := store.CreateTown("test town", true)

	resp := doJSON(t, router, http.MethodPost, "/sessions", gin.H{
		"userName":    "alice",
		"coveyTownID": controller.CoveyTownID(),
	})

	assert.Equal(t, http.StatusBadGateway, resp.Code)
	assert.Equal(t, 0, controller.Occupancy())
}

func joinForSession(t *testing.T, controller *town.TownController) string {
	t.Helper()
	session, err := controller.AddPlayer(context.Background(), town.NewPlayer("alice"))
	require.NoError(t, err)
	return session.SessionToken()
}

func TestCreateConversationArea(t *testing.T) {
	store, router := newTestRouter(&stubTokenSource{})
	controller := store.CreateTown("test town", true)
	sessionToken := joinForSession(t, controller)

	resp := doJSON(t, router, http.MethodPost,
		"/towns/"+controller.CoveyTownID()+"/conversationAreas", gin.H{
			"sessionToken": sessionToken,
			"conversationArea": gin.H{
				"label": "lounge",
				"topic": "go",
				"boundingBox": gin.H{
					"x": 10, "y": 10, "width": 5, "height": 5,
				},
			},
		})

	assert.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, controller.ConversationAreas(), 1)
	assert.Equal(t, "lounge", controller.ConversationAreas()[0].Label)
}

func TestCreateConversationAreaRejected(t *testing.T) {
	store, router := newTestRouter(&stubTokenSource{})
	controller := store.CreateTown("test town", true)
	sessionToken := joinForSession(t, controller)

	resp := doJSON(t, router, http.MethodPost,
		"/towns/"+controller.CoveyTownID()+"/conversationAreas", gin.H{
			"sessionToken": sessionToken,
			"conversationArea": gin.H{
				"label":       "lounge",
				"topic":       "",
				"boundingBox": gin.H{"x": 10, "y": 10, "width": 5, "height": 5},
			},
		})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, controller.ConversationAreas())
}

func TestCreateConversationAreaBadSession(t *testing.T) {
	store, router := newTestRouter(&stubTokenSource{})
	controller := store.CreateTown("test town", true)

	resp := doJSON(t, router, http.MethodPost,
		"/towns/"+controller.CoveyTownID()+"/conversationAreas", gin.H{
			"sessionToken": "bogus",
			"conversationArea": gin.H{
				"label":       "lounge",
				"topic":       "go",
				"boundingBox": gin.H{"x": 10, "y": 10, "width": 5, "height": 5},
			},
		})

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCreateConversationAreaUnknownTown(t *testing.T) {
	_, router := newTestRouter(&stubTokenSource{})

	resp := doJSON(t, router, http.MethodPost,
		"/towns/no-such-town/conversationAreas", gin.H{
			"sessionToken": "whatever",
			"conversationArea": gin.H{
				"label":       "lounge",
				"topic":       "go",
				"boundingBox": gin.H{"x": 10, "y": 10, "width": 5, "height": 5},
			},
		})

	assert.Equal(t, http.StatusNotFound, resp.Code)
}
