package api

import "github.com/Sternrassler/univ-admin-client/pkg/client"

// Backend operations and their error tables.
var (
	OpLoadFacultiesList = client.Register(client.Operation{Name: "loadFacultiesList"})
	OpCreateFaculty     = client.Register(client.Operation{Name: "createFaculty", Errors: map[int]string{
		400: "INVALID_FACULTY_DATA",
		409: "CANNOT_CREATE_FACULTY",
	}})
	OpEditFaculty = client.Register(client.Operation{Name: "editFaculty", Errors: map[int]string{
		404: "FACULTY_NOT_FOUND",
		409: "CANNOT_EDIT_FACULTY",
	}})
	OpDeleteFaculty = client.Register(client.Operation{Name: "deleteFaculty", Errors: map[int]string{
		404: "FACULTY_NOT_FOUND",
		409: "CANNOT_DELETE_FACULTY",
	}})

	OpLoadCathedrasList = client.Register(client.Operation{Name: "loadCathedrasList"})
	OpCreateCathedra    = client.Register(client.Operation{Name: "createCathedra", Errors: map[int]string{
		409: "CANNOT_CREATE_CATHEDRA",
	}})
	OpEditCathedra = client.Register(client.Operation{Name: "editCathedra", Errors: map[int]string{
		404: "CATHEDRA_NOT_FOUND",
		409: "CANNOT_EDIT_CATHEDRA",
	}})
	OpDeleteCathedra = client.Register(client.Operation{Name: "deleteCathedra", Errors: map[int]string{
		404: "CATHEDRA_NOT_FOUND",
		409: "CANNOT_DELETE_CATHEDRA",
	}})

	OpLoadGroupsList = client.Register(client.Operation{Name: "loadGroupsList"})
	OpCreateGroup    = client.Register(client.Operation{Name: "createGroup", Errors: map[int]string{
		409: "CANNOT_CREATE_GROUP",
	}})
	OpEditGroup = client.Register(client.Operation{Name: "editGroup", Errors: map[int]string{
		404: "GROUP_NOT_FOUND",
		409: "CANNOT_EDIT_GROUP",
	}})
	OpDeleteGroup = client.Register(client.Operation{Name: "deleteGroup", Errors: map[int]string{
		404: "GROUP_NOT_FOUND",
		409: "CANNOT_DELETE_GROUP",
	}})

	OpLoadLessonsList = client.Register(client.Operation{Name: "loadLessonsList"})
	OpCreateLesson    = client.Register(client.Operation{Name: "createLesson", Errors: map[int]string{
		409: "CANNOT_CREATE_LESSON",
	}})
	OpEditLesson = client.Register(client.Operation{Name: "editLesson", Errors: map[int]string{
		404: "LESSON_NOT_FOUND",
		409: "CANNOT_EDIT_LESSON",
	}})
	OpDeleteLesson = client.Register(client.Operation{Name: "deleteLesson", Errors: map[int]string{
		404: "LESSON_NOT_FOUND",
		409: "CANNOT_DELETE_LESSON",
	}})

	OpLoadBalanceHistory = client.Register(client.Operation{Name: "loadBalanceHistory"})
	OpRechargeBalance    = client.Register(client.Operation{Name: "rechargeBalance", Errors: map[int]string{
		400: "INVALID_AMOUNT",
	}})

	OpLogIn = client.Register(client.Operation{Name: "logIn", Errors: map[int]string{
		400: "SESSION_WAS_NOT_INITIATED",
		404: "USER_NOT_FOUND",
	}})
	OpLogOut       = client.Register(client.Operation{Name: "logOut"})
	OpGetUserData  = client.Register(client.Operation{Name: "getUserData", Errors: map[int]string{
		404: "USER_NOT_FOUND",
	}})
)
