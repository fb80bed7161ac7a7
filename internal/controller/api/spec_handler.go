package api

import (
	"io/ioutil"
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

type ApiSpecServer struct {
	router       *mux.Router
	urlBasePath  string
	specFileName string
}

func NewApiSpecServer(r *mux.Router, urlBasePath string, f string) *ApiSpecServer {
	return &ApiSpecServer{
		router:       r,
		urlBasePath:  urlBasePath,
		specFileName: f,
	}
}

func (s *ApiSpecServer) Routes() {
	s.router.HandleFunc(s.urlBasePath+"/openapi.json", s.handleApiSpec()).Methods(http.MethodGet)
}

func (s *ApiSpecServer) handleApiSpec() http.HandlerFunc {

	return func(w http.ResponseWriter, req *http.Request) {
		file, err := ioutil.ReadFile(s.specFileName)
		if err != nil {
			log.Printf("Unable to read API spec file (%s): %s", s.specFileName, err)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(file)
	}
}
