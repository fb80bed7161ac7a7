package api

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gorilla/mux"
)

var _ = Describe("OpenAPI", func() {

	Describe("Serve openapi.json", func() {
		Context("With a valid spec file", func() {
			It("Should return the spec file contents", func() {

				specFile, err := ioutil.TempFile("", "api.spec.*.json")
				Expect(err).NotTo(HaveOccurred())
				defer os.Remove(specFile.Name())

				specContent := []byte("{\"openapi\": \"3.0.0\"}")
				_, err = specFile.Write(specContent)
				Expect(err).NotTo(HaveOccurred())
				specFile.Close()

				req, err := http.NewRequest("GET", URL_BASE_PATH+"/openapi.json", nil)
				Expect(err).NotTo(HaveOccurred())

				rr := httptest.NewRecorder()

				apiMux := mux.NewRouter()
				apiSpecServer := NewApiSpecServer(apiMux, URL_BASE_PATH, specFile.Name())
				apiSpecServer.Routes()

				apiSpecServer.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusOK))
				Expect(rr.Body.Bytes()).To(Equal(specContent))
			})
		})

		Context("With an invalid path to the api spec file", func() {
			It("Should return a 404", func() {
				req, err := http.NewRequest("GET", URL_BASE_PATH+"/openapi.json", nil)
				Expect(err).NotTo(HaveOccurred())

				rr := httptest.NewRecorder()

				apiMux := mux.NewRouter()
				apiSpecServer := NewApiSpecServer(apiMux, URL_BASE_PATH, "invalid-file-name")
				apiSpecServer.Routes()

				apiSpecServer.router.ServeHTTP(rr, req)

				Expect(rr.Code).To(Equal(http.StatusNotFound))
			})
		})
	})
})
