package httpserver

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/daly-bms/internal/protocol/daly"
	"github.com/taoyao-code/daly-bms/internal/replay"
	"github.com/taoyao-code/daly-bms/internal/session"
	"github.com/taoyao-code/daly-bms/internal/tcpserver"
	"github.com/taoyao-code/daly-bms/internal/transport"
)

type api struct {
	session *session.Session
	logger  *zap.Logger
}

// register 只读接口公开；改变状态的接口挂在 guard 之后
func (h *api) register(g *gin.RouterGroup, guard ...gin.HandlerFunc) {
	g.GET("/session", h.getSession)
	g.GET("/snapshot", h.getSnapshot)
	g.GET("/snapshot/:field", h.getField)
	g.GET("/profile", h.getProfile)
	g.GET("/profiles", h.listProfiles)

	w := g.Group("", guard...)
	w.DELETE("/snapshot", h.resetSnapshot)
	w.POST("/notifications", h.postNotification)

	cmd := w.Group("/commands")
	cmd.POST("/request/:kind", h.request)
	cmd.POST("/read", h.read)
	cmd.POST("/write", h.write)
	cmd.POST("/action", h.action)
	cmd.POST("/charging", h.switchMOS(h.session.SetChargingMOS))
	cmd.POST("/discharging", h.switchMOS(h.session.SetDischargingMOS))
	cmd.POST("/soc", h.soc)
}

// errorStatus 命令错误到 HTTP 状态码
func errorStatus(err error) int {
	switch {
	case errors.Is(err, daly.ErrUnsupportedCommand):
		return http.StatusUnprocessableEntity
	case errors.Is(err, daly.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoLink), errors.Is(err, transport.ErrCircuitOpen),
		errors.Is(err, tcpserver.ErrConnClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrRateLimited):
		return http.StatusTooManyRequests
	case daly.IsFrameError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

func (h *api) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Info())
}

// getSnapshot ?fields=cell_voltage_*,total_voltage
func (h *api) getSnapshot(c *gin.Context) {
	fields := h.session.Snapshot()
	if q := c.Query("fields"); q != "" {
		sel, err := daly.NewFieldSelector(strings.Split(q, ","))
		if err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		for name := range fields {
			if !sel.Match(name) {
				delete(fields, name)
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"device": h.session.Device(),
		"fields": fields,
	})
}

func (h *api) getField(c *gin.Context) {
	name := c.Param("field")
	v, ok := h.session.Field(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "field not in snapshot", "field": name})
		return
	}
	c.JSON(http.StatusOK, gin.H{"field": name, "value": v})
}

func (h *api) resetSnapshot(c *gin.Context) {
	if err := h.session.ResetSnapshot(c.Request.Context()); err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type kindView struct {
	KindByte   string `json:"kind_byte"`
	Kind       string `json:"kind"`
	PayloadLen int    `json:"payload_len"`
}

type profileView struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Shape       string     `json:"command_shape"`
	Kinds       []kindView `json:"kinds"`
	Actions     []string   `json:"actions"`
}

func newProfileView(p *daly.Profile) profileView {
	v := profileView{Name: p.Name, Description: p.Description, Shape: p.Shape.String()}
	for b, k := range p.Kinds {
		v.Kinds = append(v.Kinds, kindView{
			KindByte:   strings.ToUpper(hex.EncodeToString([]byte{b})),
			Kind:       k.Kind.String(),
			PayloadLen: k.PayloadLen,
		})
	}
	sort.Slice(v.Kinds, func(i, j int) bool { return v.Kinds[i].KindByte < v.Kinds[j].KindByte })
	for a := range p.Actions {
		v.Actions = append(v.Actions, a.String())
	}
	sort.Strings(v.Actions)
	return v
}

func (h *api) getProfile(c *gin.Context) {
	c.JSON(http.StatusOK, newProfileView(h.session.Profile()))
}

func (h *api) listProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"profiles": daly.ProfileNames(), "active": h.session.Profile().Name})
}

type notificationRequest struct {
	Hex string `json:"hex" binding:"required"`
}

// postNotification 外部 BLE 桥转发的原始通知
func (h *api) postNotification(c *gin.Context) {
	var req notificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	raw, err := replay.ParseHex(req.Hex)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	r, err := h.session.HandleNotification(c.Request.Context(), raw)
	if err != nil {
		c.AbortWithStatusJSON(errorStatus(err), gin.H{"error": err.Error(), "reason": daly.ErrorLabel(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"fields": r.Len(), "reading": r})
}

func (h *api) reply(c *gin.Context, cmd *session.Command, err error) {
	if err != nil {
		fail(c, errorStatus(err), err)
		return
	}
	c.JSON(http.StatusAccepted, cmd)
}

func (h *api) request(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		cmd *session.Command
		err error
	)
	switch c.Param("kind") {
	case "status":
		cmd, err = h.session.RequestStatus(ctx)
	case "settings":
		cmd, err = h.session.RequestSettings(ctx)
	case "versions":
		cmd, err = h.session.RequestVersions(ctx)
	case "password":
		cmd, err = h.session.RequestPassword(ctx)
	case "cell_info":
		cmd, err = h.session.RequestCellInfo(ctx)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown request kind", "kind": c.Param("kind")})
		return
	}
	h.reply(c, cmd, err)
}

type readRequest struct {
	Address  *uint16 `json:"address" binding:"required"`
	Quantity *uint16 `json:"quantity" binding:"required"`
}

func (h *api) read(c *gin.Context) {
	var req readRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	cmd, err := h.session.Read(c.Request.Context(), *req.Address, *req.Quantity)
	h.reply(c, cmd, err)
}

type writeRequest struct {
	Address *uint16 `json:"address" binding:"required"`
	Value   *uint16 `json:"value" binding:"required"`
}

func (h *api) write(c *gin.Context) {
	var req writeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	cmd, err := h.session.Write(c.Request.Context(), *req.Address, *req.Value)
	h.reply(c, cmd, err)
}

type actionRequest struct {
	Action string `json:"action" binding:"required"`
}

func (h *api) action(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	a, ok := daly.ParseAction(req.Action)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown action", "action": req.Action})
		return
	}
	cmd, err := h.session.Action(c.Request.Context(), a)
	h.reply(c, cmd, err)
}

type switchRequest struct {
	On *bool `json:"on" binding:"required"`
}

func (h *api) switchMOS(set func(ctx context.Context, on bool) (*session.Command, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req switchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		cmd, err := set(c.Request.Context(), *req.On)
		h.reply(c, cmd, err)
	}
}

type socRequest struct {
	Percent *float64 `json:"percent" binding:"required"`
}

func (h *api) soc(c *gin.Context) {
	var req socRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	cmd, err := h.session.SetSOC(c.Request.Context(), *req.Percent)
	h.reply(c, cmd, err)
}
