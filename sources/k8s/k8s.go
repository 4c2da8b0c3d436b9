// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package k8s

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	k8sRuntime "k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/cache"
	"k8s.io/client-go/util/workqueue"

	"github.com/joamaki/rxcore/rx"
)

var ErrResourceStopped = errors.New("resource stopped before it was synced")

// Key of an K8s object, e.g. name and optional namespace.
type Key struct {
	// Name is the name of the object
	Name string

	// Namespace is the namespace, or empty if object is not namespaced.
	Namespace string
}

func (k Key) String() string {
	if len(k.Namespace) > 0 {
		return k.Namespace + "/" + k.Name
	}
	return k.Name
}

func NewKey(obj any) Key {
	if d, ok := obj.(cache.DeletedFinalStateUnknown); ok {
		namespace, name, _ := cache.SplitMetaNamespaceKey(d.Key)
		return Key{name, namespace}
	}

	meta, err := meta.Accessor(obj)
	if err != nil {
		return Key{}
	}
	return Key{meta.GetName(), meta.GetNamespace()}
}

// Event emitted from resource. One of SyncEvent, UpdateEvent or DeleteEvent.
type Event[T k8sRuntime.Object] interface {
	isEvent(T)

	// Dispatch dispatches to the right event handler. Prefer this over
	// type switch on event.
	Dispatch(
		onSync func(Store[T]),
		onUpdate func(Key, T),
		onDelete func(Key),
	)
}

// SyncEvent is emitted once the initial set of objects has been emitted.
type SyncEvent[T k8sRuntime.Object] struct {
	Store Store[T]
}

var _ Event[*corev1.Node] = &SyncEvent[*corev1.Node]{}

func (*SyncEvent[T]) isEvent(T) {}
func (s *SyncEvent[T]) Dispatch(onSync func(Store[T]), onUpdate func(Key, T), onDelete func(Key)) {
	onSync(s.Store)
}

// UpdateEvent is emitted when an object has been added or updated
type UpdateEvent[T k8sRuntime.Object] struct {
	Key    Key
	Object T
}

var _ Event[*corev1.Node] = &UpdateEvent[*corev1.Node]{}

func (*UpdateEvent[T]) isEvent(T) {}
func (ev *UpdateEvent[T]) Dispatch(onSync func(Store[T]), onUpdate func(Key, T), onDelete func(Key)) {
	onUpdate(ev.Key, ev.Object)
}

// DeleteEvent is emitted when an object has been deleted
type DeleteEvent[T k8sRuntime.Object] struct {
	Key Key
}

var _ Event[*corev1.Node] = &DeleteEvent[*corev1.Node]{}

func (*DeleteEvent[T]) isEvent(T) {}
func (ev *DeleteEvent[T]) Dispatch(onSync func(Store[T]), onUpdate func(Key, T), onDelete func(Key)) {
	onDelete(ev.Key)
}

// Store is a read-only typed wrapper for cache.Store.
type Store[T k8sRuntime.Object] interface {
	List() []T
	ListKeys() []string
	Get(obj T) (item T, exists bool, err error)
	GetByKey(key string) (item T, exists bool, err error)
}

type typedStore[T k8sRuntime.Object] struct {
	store cache.Store
}

var _ Store[*corev1.Node] = &typedStore[*corev1.Node]{}

func (s *typedStore[T]) List() []T {
	items := s.store.List()
	result := make([]T, len(items))
	for i := range items {
		result[i] = items[i].(T)
	}
	return result
}

func (s *typedStore[T]) ListKeys() []string {
	return s.store.ListKeys()
}

func (s *typedStore[T]) Get(obj T) (item T, exists bool, err error) {
	key, err := cache.MetaNamespaceKeyFunc(obj)
	if err != nil {
		return
	}
	return s.GetByKey(key)
}

func (s *typedStore[T]) GetByKey(key string) (item T, exists bool, err error) {
	var itemAny any
	itemAny, exists, err = s.store.GetByKey(key)
	if exists {
		item = itemAny.(T)
	}
	return
}

// NewResource creates an observable of events from a ListerWatcher, along
// with the function that runs the informer until 'ctx' is cancelled.
//
// Each subscriber first gets the current objects as UpdateEvents, followed
// by a SyncEvent carrying a read-only handle onto the store, after which
// changes follow. Events are delivered from a goroutine per subscriber.
// The stream completes when 'ctx' is cancelled after the initial sync and
// fails with ErrResourceStopped if it is cancelled before.
func NewResource[T k8sRuntime.Object](ctx context.Context, lw cache.ListerWatcher) (src rx.Observable[Event[T]], run func()) {
	var (
		mu            sync.RWMutex
		subID         int
		queues        = make(map[int]workqueue.TypedInterface[Key])
		exampleObject T
	)

	// Helper to push the key to all subscribed queues.
	push := func(key Key) {
		mu.RLock()
		for _, queue := range queues {
			queue.Add(key)
		}
		mu.RUnlock()
	}

	store, informer := cache.NewInformerWithOptions(cache.InformerOptions{
		ListerWatcher: lw,
		ObjectType:    exampleObject,
		Handler: cache.ResourceEventHandlerFuncs{
			AddFunc:    func(obj any) { push(NewKey(obj)) },
			UpdateFunc: func(old any, new any) { push(NewKey(new)) },
			DeleteFunc: func(obj any) { push(NewKey(obj)) },
		},
	})

	run = func() { informer.Run(ctx.Done()) }
	src = rx.FuncObservable[Event[T]](
		func(observer rx.Observer[Event[T]]) rx.Subscription {
			// Subscribe to changes first so they would not be missed.
			mu.Lock()
			subID++
			id := subID
			queue := workqueue.NewTyped[Key]()
			queues[id] = queue
			mu.Unlock()

			done := make(chan struct{})
			var (
				stopOnce              sync.Once
				cancelledBySubscriber atomic.Bool
			)
			stop := func() {
				stopOnce.Do(func() {
					close(done)
					mu.Lock()
					delete(queues, id)
					mu.Unlock()
					queue.ShutDown()
				})
			}

			go func() {
				select {
				case <-ctx.Done():
					stop()
				case <-done:
				}
			}()

			go func() {
				// Wait for cache to be synced before emitting the initial set.
				if !cache.WaitForCacheSync(done, informer.HasSynced) {
					if !cancelledBySubscriber.Load() {
						observer.OnError(ErrResourceStopped)
					}
					return
				}

				// Emit the initial set of objects followed by the sync event
				initialVersions := make(map[Key]string)
				for _, obj := range store.List() {
					if cancelledBySubscriber.Load() {
						return
					}
					key := NewKey(obj)
					observer.OnNext(&UpdateEvent[T]{key, obj.(T)})
					initialVersions[key] = resourceVersion(obj)
				}
				observer.OnNext(&SyncEvent[T]{&typedStore[T]{store}})

				for {
					key, shutdown := queue.Get()
					if shutdown {
						break
					}
					queue.Done(key)
					if cancelledBySubscriber.Load() {
						return
					}

					rawObj, exists, err := store.GetByKey(key.String())
					if err != nil {
						stop()
						observer.OnError(err)
						return
					}

					if initialVersion, ok := initialVersions[key]; ok {
						// We can now forget the initial version.
						delete(initialVersions, key)
						if exists && initialVersion == resourceVersion(rawObj) {
							// Already emitted, skip.
							continue
						}
					}

					if exists {
						observer.OnNext(&UpdateEvent[T]{key, rawObj.(T)})
					} else {
						observer.OnNext(&DeleteEvent[T]{key})
					}
				}

				// Queue was shut down because 'ctx' was cancelled.
				if !cancelledBySubscriber.Load() {
					observer.OnCompleted()
				}
			}()

			return rx.NewSubscription(func() {
				cancelledBySubscriber.Store(true)
				stop()
			})
		})

	return
}

// NewResourceFromListWatch creates an observable of events from the typed client, e.g. (kubernetes.Interface).Pods() etc.
func NewResourceFromListWatch[ObjT k8sRuntime.Object, ListT k8sRuntime.Object](ctx context.Context, lw TypedListerWatcher[ListT]) (src rx.Observable[Event[ObjT]], run func()) {
	return NewResource[ObjT](ctx, listerWatcherAdapter[ListT]{ctx, lw})
}

// NewResourceFromClient creates an observable of events from a k8s REST
// client for the given resource and namespace.
func NewResourceFromClient[T k8sRuntime.Object](
	ctx context.Context,
	resource string,
	namespace string,
	client rest.Interface,
) (src rx.Observable[Event[T]], run func()) {
	lw := cache.NewListWatchFromClient(
		client,
		resource,
		namespace,
		fields.Everything(),
	)
	return NewResource[T](ctx, lw)
}

func resourceVersion(obj any) (version string) {
	if obj != nil {
		meta, err := meta.Accessor(obj)
		if err == nil {
			return meta.GetResourceVersion()
		}
	}
	return ""
}

// TypedListerWatcher is the interface implemented by the generated clients.
type TypedListerWatcher[ListT k8sRuntime.Object] interface {
	List(context.Context, metav1.ListOptions) (ListT, error)
	Watch(context.Context, metav1.ListOptions) (watch.Interface, error)
}

// listerWatcherAdapter implements cache.ListerWatcher in terms of a typed List and Watch methods.
type listerWatcherAdapter[ListT k8sRuntime.Object] struct {
	ctx   context.Context
	typed TypedListerWatcher[ListT]
}

func (tlw listerWatcherAdapter[T]) Watch(options metav1.ListOptions) (watch.Interface, error) {
	return tlw.typed.Watch(tlw.ctx, options)
}

func (tlw listerWatcherAdapter[T]) List(options metav1.ListOptions) (k8sRuntime.Object, error) {
	return tlw.typed.List(tlw.ctx, options)
}
