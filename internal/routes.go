package internal

import (
	"net/http"

	"widgetd/internal/controllers"
	"widgetd/internal/providers"
	"widgetd/internal/structures"
)

func InitRoutes(apiController *controllers.ApiController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Post("/widget", http.HandlerFunc(apiController.CreateWidget))

	routers.Post("/counter/visit", http.HandlerFunc(apiController.RecordVisit))
	routers.Post("/counter/reset", http.HandlerFunc(apiController.ResetCounter))
	routers.Get("/counter", http.HandlerFunc(apiController.GetCounts))

	routers.Post("/like/toggle", http.HandlerFunc(apiController.ToggleLike))
	routers.Get("/like", http.HandlerFunc(apiController.GetLikeState))

	routers.Post("/ranking/score", http.HandlerFunc(apiController.SubmitScore))
	routers.Post("/ranking/config", http.HandlerFunc(apiController.SetRankingLimit))
	routers.Get("/ranking", http.HandlerFunc(apiController.GetTop))

	routers.Post("/bbs/message", http.HandlerFunc(apiController.PostMessage))
	routers.Post("/bbs/message/edit", http.HandlerFunc(apiController.EditMessage))
	routers.Post("/bbs/message/delete", http.HandlerFunc(apiController.DeleteMessage))
	routers.Get("/bbs", http.HandlerFunc(apiController.GetPage))

	return routers
}
