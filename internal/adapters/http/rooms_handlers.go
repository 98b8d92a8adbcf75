package http

import (
	"net/http"
	"strconv"

	"github.com/dkeye/roomchat/internal/domain"
	"github.com/gin-gonic/gin"
)

type RoomsAPI struct {
	Store    Store
	Chat     Chat
	Presence Presence
}

type createRoomReq struct {
	Name string `json:"name"`
}

type postMessageReq struct {
	Content string `json:"content"`
}

func roomParam(c *gin.Context) (domain.RoomID, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || !domain.RoomID(id).Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return 0, false
	}
	return domain.RoomID(id), true
}

func (a *RoomsAPI) List(c *gin.Context) {
	rooms, err := a.Store.ListRooms(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (a *RoomsAPI) Mine(c *gin.Context) {
	rooms, err := a.Store.ListUserRooms(c.Request.Context(), currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rooms})
}

func (a *RoomsAPI) Create(c *gin.Context) {
	var req createRoomReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}
	room, err := a.Store.CreateRoom(c.Request.Context(), req.Name, currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (a *RoomsAPI) Join(c *gin.Context) {
	room, ok := roomParam(c)
	if !ok {
		return
	}
	uid := currentUser(c)
	if err := a.Store.JoinRoom(c.Request.Context(), room, uid); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": room, "userId": uid})
}

func (a *RoomsAPI) Users(c *gin.Context) {
	room, ok := roomParam(c)
	if !ok {
		return
	}
	users, err := a.Store.RoomUsers(c.Request.Context(), room)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// Online returns who is connected to the room right now.
func (a *RoomsAPI) Online(c *gin.Context) {
	room, ok := roomParam(c)
	if !ok {
		return
	}
	users, err := a.Presence.Online(c.Request.Context(), room)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if users == nil {
		users = []domain.Identity{}
	}
	c.JSON(http.StatusOK, gin.H{"room": room, "users": users})
}

func (a *RoomsAPI) Stats(c *gin.Context) {
	rooms, err := a.Presence.Stats(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (a *RoomsAPI) Messages(c *gin.Context) {
	room, ok := roomParam(c)
	if !ok {
		return
	}
	msgs, err := a.Store.ListMessages(c.Request.Context(), room)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (a *RoomsAPI) PostMessage(c *gin.Context) {
	room, ok := roomParam(c)
	if !ok {
		return
	}
	var req postMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}
	msg, err := a.Chat.PostMessage(c.Request.Context(), room, currentUser(c), req.Content)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
