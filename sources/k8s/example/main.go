// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"

	"github.com/kr/pretty"
	"github.com/rs/zerolog"
	v1 "k8s.io/api/core/v1"
	k8sRuntime "k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/joamaki/rxcore/rx"
	"github.com/joamaki/rxcore/sources/k8s"
)

var (
	apiServerURL   string
	kubeConfigPath string
)

func init() {
	flag.StringVar(&apiServerURL, "server-url", "", "Kubernetes API server URL")
	var defaultKubeConfigPath string
	if homeDir, err := os.UserHomeDir(); err == nil {
		defaultKubeConfigPath = path.Join(homeDir, ".kube", "config")
	}
	flag.StringVar(&kubeConfigPath, "kubeconfig", defaultKubeConfigPath, "Path to kubeconfig")
}

func main() {
	flag.Parse()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	// Cancel the context on interrupt (ctrl-c)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	client, err := newK8sRESTClient(apiServerURL, kubeConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create k8s client")
	}

	pods, runPods := k8s.NewResourceFromClient[*v1.Pod](ctx, "pods", "default", client)
	services, runServices := k8s.NewResourceFromClient[*v1.Service](ctx, "services", "default", client)
	endpoints, runEndpoints := k8s.NewResourceFromClient[*v1.Endpoints](ctx, "endpoints", "default", client)
	go runPods()
	go runServices()
	go runEndpoints()

	// Print from a single goroutine.
	looper := rx.NewLooper(rx.WithLogger(log), rx.WithName("printer"))
	looper.Start()
	defer looper.Stop()

	// Combine everything into a stream of update messages.
	updates := rx.MergeAll(
		rx.Just("Waiting for updates...\n"),
		describe("pod", pods),
		describe("service", services),
		describe("endpoints", endpoints),
	)

	done := make(chan error, 1)
	sub := rx.ObserveOn(updates, rx.NewLooperScheduler(looper)).Subscribe(rx.ObserverFuncs[string]{
		Next:      func(desc string) { fmt.Println(desc) },
		Completed: func() { done <- nil },
		Error:     func(err error) { done <- err },
	})
	defer sub.Cancel()

	if err := <-done; err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("error")
	}
}

func describe[T k8sRuntime.Object](kind string, events rx.Observable[k8s.Event[T]]) rx.Observable[string] {
	return rx.Defer(func() rx.Observable[string] {
		d := newDiffer[T]()
		return rx.Map(events, func(ev k8s.Event[T]) (desc string) {
			ev.Dispatch(
				func(store k8s.Store[T]) {
					desc = fmt.Sprintf("%s: synced %d objects", kind, len(store.ListKeys()))
				},
				func(key k8s.Key, obj T) {
					desc = fmt.Sprintf("%s %s updated:\n%s\n", kind, key, d.diff(key, obj))
				},
				func(key k8s.Key) {
					delete(d.previous, key)
					desc = fmt.Sprintf("%s %s deleted", kind, key)
				},
			)
			return
		})
	})
}

type differ[T any] struct {
	previous map[k8s.Key]T
}

func newDiffer[T any]() differ[T] {
	return differ[T]{make(map[k8s.Key]T)}
}

func (d differ[T]) diff(key k8s.Key, obj T) string {
	changeDesc := ""
	if prev, ok := d.previous[key]; ok {
		changes := pretty.Diff(prev, obj)
		changeDesc = strings.Join(changes, "\n")
	} else {
		changeDesc = fmt.Sprintf("%#v", obj)
	}
	d.previous[key] = obj
	return changeDesc
}

func newK8sRESTClient(url, kubeconfig string) (rest.Interface, error) {
	config, err := clientcmd.BuildConfigFromFlags(url, kubeconfig)
	if err != nil {
		return nil, err
	}
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, err
	}
	return clientset.CoreV1().RESTClient(), nil
}
