// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build integration

package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rivaas.dev/hello/internal/hello"
	"rivaas.dev/hello/logging"
	"rivaas.dev/hello/router"
	"rivaas.dev/hello/server"
)

// running is a server listening on a loopback port.
type running struct {
	srv      *server.Server
	base     string
	addr     string
	serveErr chan error
}

func start(r *router.Router, opts ...server.Option) *running {
	srv, err := server.New(r, append([]server.Option{server.WithLogger(logging.Discard())}, opts...)...)
	Expect(err).NotTo(HaveOccurred())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())

	rs := &running{
		srv:      srv,
		base:     "http://" + ln.Addr().String(),
		addr:     ln.Addr().String(),
		serveErr: make(chan error, 1),
	}
	go func() {
		defer GinkgoRecover()
		rs.serveErr <- srv.Serve(context.Background(), ln)
	}()

	DeferCleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return rs
}

func get(url string) (int, string) {
	resp, err := http.Get(url)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp.StatusCode, string(body)
}

var _ = Describe("Server", func() {
	var r *router.Router

	BeforeEach(func() {
		r = router.New()
		r.GET("/hello", hello.Handler())
	})

	Describe("routing", func() {
		It("answers GET /hello with 200 hello", func() {
			rs := start(r)

			resp, err := http.Get(rs.base + "/hello")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(string(body)).To(Equal("hello"))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/plain; charset=utf-8"))
		})

		It("answers unknown paths with a 404 problem", func() {
			rs := start(r)

			resp, err := http.Get(rs.base + "/unknown")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("application/problem+json"))

			var problem map[string]any
			Expect(json.NewDecoder(resp.Body).Decode(&problem)).To(Succeed())
			Expect(problem).To(HaveKeyWithValue("code", "ROUTE_NOT_FOUND"))
			Expect(problem).To(HaveKeyWithValue("instance", "/unknown"))
		})

		It("does not match a different method on a known path", func() {
			rs := start(r)

			resp, err := http.Post(rs.base+"/hello", "text/plain", bytes.NewBufferString("x"))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handler failures", func() {
		It("answers 500 and keeps serving after errors and panics", func() {
			r.GET("/fail", router.HandlerFunc(func(*router.Request) (*router.Response, error) {
				return nil, errors.New("boom")
			}))
			r.GET("/panic", router.HandlerFunc(func(*router.Request) (*router.Response, error) {
				panic("boom")
			}))
			rs := start(r)

			for range 3 {
				status, _ := get(rs.base + "/fail")
				Expect(status).To(Equal(http.StatusInternalServerError))
				status, _ = get(rs.base + "/panic")
				Expect(status).To(Equal(http.StatusInternalServerError))
			}

			status, body := get(rs.base + "/hello")
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(Equal("hello"))
		})
	})

	Describe("concurrency", func() {
		It("serves other connections while one handler is slow", func() {
			release := make(chan struct{})
			entered := make(chan struct{})
			r.GET("/slow", router.HandlerFunc(func(req *router.Request) (*router.Response, error) {
				close(entered)
				select {
				case <-release:
				case <-req.Context().Done():
					return nil, req.Context().Err()
				}
				return router.Text(http.StatusOK, "slow"), nil
			}))
			rs := start(r)

			slowDone := make(chan string, 1)
			go func() {
				defer GinkgoRecover()
				_, body := get(rs.base + "/slow")
				slowDone <- body
			}()
			Eventually(entered).Should(BeClosed())

			var wg sync.WaitGroup
			for range 20 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					status, body := get(rs.base + "/hello")
					Expect(status).To(Equal(http.StatusOK))
					Expect(body).To(Equal("hello"))
				}()
			}
			wg.Wait()
			Consistently(slowDone, 50*time.Millisecond).ShouldNot(Receive())

			close(release)
			Eventually(slowDone, 2*time.Second).Should(Receive(Equal("slow")))
		})
	})

	Describe("limits and malformed input", func() {
		It("rejects an oversized body with 413", func() {
			r.POST("/upload", router.HandlerFunc(func(*router.Request) (*router.Response, error) {
				return router.NoContent(), nil
			}))
			rs := start(r, server.WithMaxBodyBytes(1024))

			resp, err := http.Post(rs.base+"/upload", "application/octet-stream", bytes.NewReader(make([]byte, 4096)))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusRequestEntityTooLarge))
		})

		It("answers garbage with 400 and closes the connection", func() {
			rs := start(r)

			conn, err := net.Dial("tcp", rs.addr)
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()
			Expect(conn.SetDeadline(time.Now().Add(5 * time.Second))).To(Succeed())

			_, err = fmt.Fprint(conn, "THIS IS NOT HTTP\r\n\r\n")
			Expect(err).NotTo(HaveOccurred())

			br := bufio.NewReader(conn)
			resp, err := http.ReadResponse(br, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(resp.Close).To(BeTrue())
			_, _ = io.Copy(io.Discard, resp.Body)

			_, err = br.ReadByte()
			Expect(err).To(MatchError(io.EOF))
		})
	})

	Describe("lifecycle", func() {
		It("reports a busy port as a bind error", func() {
			busy, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			defer busy.Close()

			srv, err := server.New(r, server.WithAddr(busy.Addr().String()))
			Expect(err).NotTo(HaveOccurred())

			err = srv.ListenAndServe(context.Background())
			Expect(err).To(MatchError(server.ErrBind))

			var bindErr *server.BindError
			Expect(errors.As(err, &bindErr)).To(BeTrue())
			Expect(bindErr.Addr).To(Equal(busy.Addr().String()))
		})

		It("finishes in-flight requests before Serve returns", func() {
			release := make(chan struct{})
			entered := make(chan struct{})
			r.GET("/slow", router.HandlerFunc(func(*router.Request) (*router.Response, error) {
				close(entered)
				<-release
				return router.Text(http.StatusOK, "finished"), nil
			}))
			rs := start(r)

			inFlight := make(chan string, 1)
			go func() {
				defer GinkgoRecover()
				_, body := get(rs.base + "/slow")
				inFlight <- body
			}()
			Eventually(entered).Should(BeClosed())

			shutdownDone := make(chan error, 1)
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				shutdownDone <- rs.srv.Shutdown(ctx)
			}()
			Consistently(shutdownDone, 100*time.Millisecond).ShouldNot(Receive())

			close(release)
			Eventually(inFlight, 2*time.Second).Should(Receive(Equal("finished")))
			Eventually(shutdownDone, 2*time.Second).Should(Receive(BeNil()))
			Eventually(rs.serveErr, 2*time.Second).Should(Receive(MatchError(server.ErrServerClosed)))
		})
	})
})
