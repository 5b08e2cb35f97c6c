package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/config"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/plant"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/repository"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var file string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机工单, 2: 从 CSV 导入工单)")
	flag.IntVar(&n, "n", 20, "要插入的随机工单数量")
	flag.StringVar(&file, "file", "./internal/seed/data/orders.csv", "要导入的 CSV 文件")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 读取车间配置，工序列名和时区都来自这里
	p, err := plant.Load(cfg.Plant.ConfigPath)
	if err != nil {
		logger.Error("无法加载车间配置", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 {
			slog.Error("请输入合法的工单数量")
			return
		}
		cnt := seed.SeedRandomOrders(repo, n, p, time.Now().In(p.Calendar.Location))
		slog.Info("插入工单成功", slog.Int("count", cnt))
	case 2:
		seed.SeedOrders(repo, file, p)
	default:
		slog.Error("指定的操作非法")
	}
}
