package main

import (
	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"
	"app/internal/server"
	"app/internal/usecase"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

func main() {
	//.envは無くてもよい（コンテナでは環境変数が直接入る）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	if err := gormDB.AutoMigrate(
		&model.Order{},
		&model.OrderItem{},
		&model.Payment{},
		&model.AuditLog{},
	); err != nil {
		logger.Fatal("migrate failed", zap.Error(err))
	}

	//Repository（GORM実装）生成
	txManager := infraRepo.NewTxManagerGorm(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}

	//Usecase生成
	sm := usecase.NewOrderStateMachine(txManager, auditRepo)
	paymentUC := usecase.NewPaymentUsecase(txManager, auditRepo)
	returnUC := usecase.NewReturnUsecase(txManager, auditRepo)
	orderUC := usecase.NewOrderUsecase(txManager, sm, paymentUC, auditRepo, idGen, logger)
	adminOrderUC := usecase.NewAdminOrderUsecase(txManager, sm, orderUC)

	//Handler生成
	handlers := server.Handlers{
		Orders:      handler.NewOrderHandler(orderUC, returnUC),
		AdminOrders: handler.NewAdminOrderHandler(adminOrderUC),
		Payments:    handler.NewPaymentHandler(paymentUC),
		Returns:     handler.NewReturnHandler(returnUC),
	}

	e := server.New(cfg, logger, handlers)

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr))
	if err := server.Start(e, addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
