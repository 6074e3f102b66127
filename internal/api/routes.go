package api

import (
	"github.com/gin-gonic/gin"

	internalapi "github.com/wglickman33/mykosherdelivery-sub000/internal/api/internal"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/api/middleware"
	v1 "github.com/wglickman33/mykosherdelivery-sub000/internal/api/v1"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/service"
)

type Services struct {
	GiftCards  *service.GiftCardService
	Orders     *service.NursingHomeOrderService
	Settlement *service.SettlementService
	Audit      *service.AuditService
}

func RegisterV1Routes(
	group *gin.RouterGroup,
	auth gin.HandlerFunc,
	services Services,
	deductLimiter *middleware.KeyedLimiter,
) {
	v1.RegisterGiftCardRoutes(group, auth, services.GiftCards, deductLimiter)
	v1.RegisterNursingHomeRoutes(group, auth, services.Orders)
	v1.RegisterAuditRoutes(group, auth, services.Audit)
}

func RegisterInternalRoutes(router gin.IRoutes, services Services, internalToken string) {
	internalapi.RegisterSettlementInternalRoutes(router, services.Settlement, internalToken)
}
