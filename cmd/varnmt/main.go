// Copyright 2023 NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/nlpodyssey/varnmt"
	"github.com/nlpodyssey/varnmt/vocab"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)

	app := &cli.App{
		Name:  "varnmt",
		Usage: "Perform various operations with a latent-variable translation model",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "set log level (trace, debug, info, warn, error, fatal, panic)",
				Action: func(c *cli.Context, s string) error {
					return setDebugLevel(s)
				},
				Value:   "info",
				EnvVars: []string{"VARNMT_LOGLEVEL"},
			},
			&cli.StringFlag{
				Name:     "model",
				Usage:    "path of the model file to operate on",
				Required: true,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a new model from a configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Usage:    "path of the JSON configuration file",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					if err := create(c.String("config"), c.String("model")); err != nil {
						log.Fatal().Err(err).Send()
					}
					return nil
				},
			},
			{
				Name:  "import-embeddings",
				Usage: "Replace embedding weights with pretrained word vectors",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "vectors",
						Usage:    "path of the PyTorch tensor file holding the vectors",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "side",
						Usage: "table to replace: enc, dec or both",
						Value: "both",
					},
				},
				Action: func(c *cli.Context) error {
					if err := importEmbeddings(c.String("model"), c.String("vectors"), c.String("side")); err != nil {
						log.Fatal().Err(err).Send()
					}
					return nil
				},
			},
			{
				Name:  "check",
				Usage: "Run a tiny forward pass and report the output shapes",
				Action: func(c *cli.Context) error {
					if err := check(c.String("model")); err != nil {
						log.Fatal().Err(err).Send()
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func setDebugLevel(debugLevel string) error {
	level, err := zerolog.ParseLevel(debugLevel)
	if err != nil {
		return err
	}
	log.Logger = log.Level(level)
	return nil
}

func create(configPath, modelPath string) error {
	config, err := varnmt.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config file %q: %w", configPath, err)
	}
	model, err := varnmt.New[float32](config)
	if err != nil {
		return err
	}
	if err := varnmt.Dump(model, modelPath); err != nil {
		return err
	}
	log.Info().Str("model", modelPath).Msg("Model created")
	return nil
}

func importEmbeddings(modelPath, vectorsPath, side string) error {
	model, err := varnmt.Load(modelPath)
	if err != nil {
		return err
	}
	c := model.Config
	switch side {
	case "enc":
		err = varnmt.ImportPretrainedVectors[float32](model.SrcEmbeddings, c.SrcVocabSize, c.WordVecSize, vectorsPath)
	case "dec":
		err = varnmt.ImportPretrainedVectors[float32](model.TgtEmbeddings, c.TgtVocabSize, c.WordVecSize, vectorsPath)
	case "both":
		err = varnmt.ImportPretrainedVectors[float32](model.SrcEmbeddings, c.SrcVocabSize, c.WordVecSize, vectorsPath)
		if err == nil && !c.ShareEmbeddings {
			err = varnmt.ImportPretrainedVectors[float32](model.TgtEmbeddings, c.TgtVocabSize, c.WordVecSize, vectorsPath)
		}
	default:
		return fmt.Errorf("unknown side %q, expected enc, dec or both", side)
	}
	if err != nil {
		return err
	}
	return varnmt.Dump(model, modelPath)
}

func check(modelPath string) error {
	model, err := varnmt.Load(modelPath)
	if err != nil {
		return err
	}
	src := [][]int{{vocab.Bos}, {vocab.Unk}, {vocab.Eos}}
	tgt := [][]int{{vocab.Bos}, {vocab.Unk}, {vocab.Unk}, {vocab.Eos}}
	logits, mu, logVar, err := model.Forward(src, tgt, 0)
	if err != nil {
		return err
	}
	log.Info().
		Int("timesteps", len(logits)).
		Int("batch", len(logits[0])).
		Int("vocab", logits[0][0].Value().Size()).
		Int("latent", mu[0].Value().Size()).
		Msg("Forward pass complete")
	log.Info().Msgf("logvar: %v", logVar[0].Value().Data().F64())
	return nil
}
