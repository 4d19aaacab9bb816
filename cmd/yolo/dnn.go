//go:build gocv

package main

import (
	"github.com/nvr-ai/go-yolo/config"
	"github.com/nvr-ai/go-yolo/inference"
)

func init() {
	engines["dnn"] = func(cfg config.Config) (inference.Inferer, error) {
		return inference.NewDNNSession(cfg.Model.Path, cfg.Model.InputWidth, cfg.Model.InputHeight)
	}
}
