package main

import (
	"context"
	"encoding/hex"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lorawan-server/gatewayd/internal/beaconer"
	"github.com/lorawan-server/gatewayd/internal/conduit"
	"github.com/lorawan-server/gatewayd/internal/config"
	"github.com/lorawan-server/gatewayd/internal/configclient"
	"github.com/lorawan-server/gatewayd/internal/entropyclient"
	"github.com/lorawan-server/gatewayd/internal/gatewayio"
	"github.com/lorawan-server/gatewayd/internal/keypair"
	"github.com/lorawan-server/gatewayd/internal/packetrouter"
	"github.com/lorawan-server/gatewayd/internal/region"
	"github.com/lorawan-server/gatewayd/internal/regionwatcher"
	"github.com/lorawan-server/gatewayd/internal/wire"
)

const (
	defaultBeaconInterval = 8 * time.Hour
	witnessQueueDepth     = 10
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "config/gatewayd.yml", "config file path")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	log.Info().Msg("gatewayd starting")

	kp, err := keypair.Load(cfg.Keypair.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load keypair")
	}
	log.Info().Str("pubkey", hex.EncodeToString(kp.Public)).Msg("gateway identity loaded")

	toPacketRouter := make(chan gatewayio.UplinkFrame, cfg.Router.Queue)
	toBeaconer := make(chan gatewayio.WitnessFrame, witnessQueueDepth)

	gw, err := gatewayio.New(cfg.Server.ListenUDP, toPacketRouter, toBeaconer, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bind gateway UDP listener")
	}

	routerConduit := conduit.New(cfg.Router.URI, cfg.InsecureTLS, packetrouter.Adapter{}, kp, log.Logger)
	pocConduit := conduit.New(cfg.Poc.URI, cfg.InsecureTLS, beaconer.Adapter{}, kp, log.Logger)

	prClient := packetrouter.New(cfg.Router.URI, routerConduit, gw, kp, cfg.Router.Queue, log.Logger)

	configServicePubKey, err := hex.DecodeString(cfg.ConfigService.PubKey)
	if err != nil {
		log.Fatal().Err(err).Msg("config_service.pubkey is not valid hex")
	}
	cfgClient := configclient.New(cfg.ConfigService.URI, cfg.InsecureTLS, configServicePubKey)
	defer cfgClient.Close()
	watcher := regionwatcher.New(cfgClient, kp, log.Logger)

	entropy := entropyclient.New(cfg.Entropy.URI)

	bc := beaconer.New(gw, pocConduit, kp, entropy, toBeaconer, watcher.Subscribe(), defaultBeaconInterval, false, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := gw.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("gateway I/O stopped")
		}
	}()

	go watcher.Run(ctx, region.Region(cfg.Region.Default))

	go func() {
		if err := bc.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("beaconer stopped")
		}
	}()

	go runPacketRouterUplinks(ctx, prClient, toPacketRouter)
	go runPacketRouterRecvLoop(ctx, routerConduit, prClient)
	go runPocRecvLoop(ctx, pocConduit, bc)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	cancel()
	prClient.Disconnect()
	pocConduit.Disconnect()

	log.Info().Msg("gatewayd stopped")
}

// runPacketRouterUplinks turns classified uplink frames from gateway
// I/O into unsigned PacketRouterPacketUpV1 messages and hands them to
// the client's replay queue; the client signs each one as it drains.
func runPacketRouterUplinks(ctx context.Context, cl *packetrouter.Client, uplinks <-chan gatewayio.UplinkFrame) {
	for {
		select {
		case <-ctx.Done():
			return
		case uf, ok := <-uplinks:
			if !ok {
				return
			}
			msg := &wire.PacketRouterPacketUpV1{
				Payload:   uf.Payload,
				Timestamp: uint64(uf.Timestamp),
				Frequency: uint32(uf.Frequency),
				Datarate:  uf.Datarate,
				RSSI:      int32(uf.RSSI),
				SNR:       int32(uf.SNR * 10),
			}
			cl.Uplink(ctx, msg, time.Now())
		}
	}
}

// runPacketRouterRecvLoop dispatches every message arriving on the
// packet-router conduit to the matching Client handler.
func runPacketRouterRecvLoop(ctx context.Context, c *conduit.Conduit, cl *packetrouter.Client) {
	for {
		msg, err := c.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("packet router recv failed")
			continue
		}
		switch m := msg.(type) {
		case *wire.PacketRouterSessionOfferV1:
			if err := cl.HandleSessionOffer(ctx, m); err != nil {
				log.Warn().Err(err).Msg("packet router session offer failed")
			}
		case *wire.PacketRouterPacketDownV1:
			cl.HandleDownlink(ctx, m)
		default:
			log.Warn().Msg("packet router: unexpected message type on conduit")
		}
	}
}

// runPocRecvLoop dispatches every message arriving on the PoC ingest
// conduit to the matching Beaconer handler.
func runPocRecvLoop(ctx context.Context, c *conduit.Conduit, bc *beaconer.Beaconer) {
	for {
		msg, err := c.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("poc ingest recv failed")
			continue
		}
		switch m := msg.(type) {
		case *wire.LoraStreamSessionOfferV1:
			if err := bc.HandleSessionOffer(ctx, m); err != nil {
				log.Warn().Err(err).Msg("poc ingest session offer failed")
			}
		default:
			log.Warn().Msg("poc ingest: unexpected message type on conduit")
		}
	}
}
